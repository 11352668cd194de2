// Package templates holds the HTML components served by the web layer. The
// .templ files are the sources; the _templ.go files are generated from them
// with `templ generate`.
//
// Table takes its body rows as children so a handler can stream and flush
// them batch by batch inside one render.
package templates
