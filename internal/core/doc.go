// Package core provides the ingestion pipeline and view model for tabular
// files.
//
// This package is the heart of the viewer, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Pipeline: delimiter detection, tokenizing, and cell coercion turn raw
//     text into a [Dataset]. Workbooks go through the excelize codec instead.
//   - Jobs: a [Runner] executes the pipeline behind a message boundary and
//     reports ordered progress [Event] values.
//   - Service: the main entry point. It owns loaded files, the Data Cache and
//     Render Window Cache, view sessions, and the undo [History].
//   - Compression: under memory pressure a dataset can be replaced by a
//     [CompressedDataset] that shares long repeated strings.
//
// # Pipeline
//
// Delimited text is decoded, normalized to LF line endings, and scanned once:
//
//	text, warnings := core.DecodeText(name, data)
//	p := core.Parser{Delimiter: core.DetectDelimiter(text)}
//	records, err := p.Parse(ctx, core.NormalizeLineEndings(text))
//	rows, err := core.CoerceRecords(ctx, records)
//	ds := core.NewDataset(core.CSVSheetName, rows)
//
// Coercion rules apply in order: blank and null markers become Null, then
// numbers, booleans, and calendar dates are recognized, and anything else is
// Text. Numbers win over dates, so "2024" is a Number.
//
// # Jobs
//
// Payloads below the sync threshold parse in the caller's goroutine and their
// events are delivered pre-buffered. Larger payloads run in a worker holding
// a [Limiter] slot. Each job emits zero or more progress events with
// non-decreasing percentages, then exactly one complete or error event. A
// cancelled job emits no terminal event.
//
// # Views
//
// A [Session] names a file, a sheet, and a viewport. [Service.Window]
// computes the visible rows with the window package and memoizes the result
// in the Render Window Cache keyed by file, sheet, range, and frozen rows.
// Viewport updates faster than one frame are coalesced.
//
// # Errors
//
// Sentinel errors and the typed [InputValidationError], [ParseError],
// [EncodingError], and [WorkerError] carry technical detail. [MapError]
// converts any of them to a user-facing message with a support code.
package core
