// Package web provides the HTTP server and handlers for the sheet viewer.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetview/internal/config"
	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/memory"
	"github.com/JonMunkholm/sheetview/internal/prefs"
	webmw "github.com/JonMunkholm/sheetview/internal/web/middleware"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// MemoryStatus reports the latest memory observation.
type MemoryStatus interface {
	Status() memory.Status
}

// Server is the HTTP server for the sheet viewer.
type Server struct {
	service *core.Service
	prefs   prefs.Store
	memory  MemoryStatus
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. mem may be nil when no monitor runs.
func NewServer(service *core.Service, store prefs.Store, mem MemoryStatus, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		prefs:   store,
		memory:  mem,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.Proxies()))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	limitUploads := s.uploadLimit()

	s.router.Get("/healthz", s.handleHealth)

	// Event streams stay open for the life of a job and skip the request
	// timeout.
	s.router.Group(func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(s.cfg.Security.Keys()))
		r.Get("/api/jobs/{jobID}/events", s.handleJobEvents)
	})

	s.router.Group(func(r chi.Router) {
		if d := s.cfg.Server.RequestTimeout; d > 0 {
			r.Use(middleware.Timeout(d))
		}
		r.Get("/", s.handleIndex)

		r.Route("/api", func(r chi.Router) {
			r.Use(webmw.APIKeyAuth(s.cfg.Security.Keys()))

			r.Route("/files", func(r chi.Router) {
				r.Get("/", s.handleListFiles)
				r.With(limitUploads).Post("/", s.handleAddFile)
				r.Get("/{fileID}", s.handleGetFile)
				r.With(limitUploads).Put("/{fileID}", s.handleReloadFile)
				r.Delete("/{fileID}", s.handleRemoveFile)
				r.Get("/{fileID}/sheets", s.handleListSheets)
			})

			r.Get("/jobs/{jobID}", s.handleGetJob)
			r.Post("/jobs/{jobID}/cancel", s.handleCancelJob)

			r.Get("/history", s.handleHistory)
			r.Post("/history/undo", s.handleUndo)

			r.Post("/sessions", s.handleOpenSession)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Use(withSession)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Put("/sheet", s.handleSelectSheet)
				r.Put("/viewport", s.handleUpdateViewport)
				r.Get("/window", s.handleWindow)
				r.Get("/table", s.handleTable)
			})

			r.Get("/memory", s.handleMemory)

			r.Get("/preferences/table-height", s.handleGetTableHeight)
			r.Put("/preferences/table-height", s.handleSetTableHeight)
		})
	})
}

// uploadLimit rate limits parse-starting requests per client IP.
func (s *Server) uploadLimit() func(http.Handler) http.Handler {
	if s.cfg.Security.UploadRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newRateLimiter(s.cfg.Security.UploadRateLimit, time.Minute).middleware
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  sc.IdleTimeout,
	}
	slog.Info("server listening", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"files":  len(s.service.Files()),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// allow consumes a token for ip. Stale visitors are dropped on the way.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, v := range rl.visitors {
		if now.Sub(v.lastReset) > 2*rl.window {
			delete(rl.visitors, k)
		}
	}

	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(webmw.ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "Too many uploads from this address",
				Action:  "Wait a minute and try again",
				Code:    "RATE001",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
