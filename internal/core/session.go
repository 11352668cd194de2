package core

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetview/internal/window"
)

// Session is one view over a sheet: which file and sheet are active and where
// the viewport sits. Every window computation takes a session explicitly.
type Session struct {
	ID        string          `json:"id"`
	FileID    string          `json:"file_id"`
	Sheet     string          `json:"sheet"`
	Viewport  window.Viewport `json:"viewport"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// session is the service-side state behind a Session.
type session struct {
	mu       sync.Mutex
	info     Session
	throttle *window.Throttle[window.Viewport]
}

func (s *session) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *session) setViewport(vp window.Viewport, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Viewport = vp
	s.info.UpdatedAt = now
	return s.info
}

// takePending applies a viewport left waiting by the throttle.
func (s *session) takePending(now time.Time) Session {
	if vp, ok := s.throttle.Take(); ok {
		return s.setViewport(vp, now)
	}
	return s.snapshot()
}

type sessionKey struct{}

// ContextWithSession attaches a session ID to ctx.
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the session ID stored in ctx, if any.
func SessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}
