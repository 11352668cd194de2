package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetview/internal/core"
)

// withSession stores the {sessionID} URL parameter in the request context.
func withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		next.ServeHTTP(w, r.WithContext(core.ContextWithSession(r.Context(), id)))
	})
}
