package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/prefs"
	"github.com/JonMunkholm/sheetview/internal/web/templates"
	"github.com/JonMunkholm/sheetview/internal/window"
)

// errBadBody rejects a request body that is not the expected JSON.
var errBadBody = &core.InputValidationError{Reason: "invalid request body"}

type openSessionRequest struct {
	FileID   string          `json:"file_id"`
	Sheet    string          `json:"sheet"`
	Viewport window.Viewport `json:"viewport"`
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &core.InputValidationError{Reason: "invalid request body: " + err.Error()}
	}
	return nil
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.FileID == "" {
		s.fail(w, r, errBadBody)
		return
	}
	sess, err := s.service.OpenSession(r.Context(), req.FileID, req.Sheet, req.Viewport)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(core.SessionFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(core.SessionFromContext(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sheet string `json:"sheet"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.service.SelectSheet(r.Context(), core.SessionFromContext(r.Context()), req.Sheet)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleUpdateViewport applies a viewport change. Changes arriving faster
// than the frame interval are coalesced and answered with 202; the newest
// one is applied by the next window request.
func (s *Server) handleUpdateViewport(w http.ResponseWriter, r *http.Request) {
	var vp window.Viewport
	if err := decodeBody(r, &vp); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, applied, err := s.service.UpdateViewport(r.Context(), core.SessionFromContext(r.Context()), vp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "coalesced"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Window(r.Context(), core.SessionFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTable renders the session's window as an HTML fragment, flushing
// after every batch of rows.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.SessionFromContext(ctx)
	logger := logging.WithFields(ctx, "session_id", id)

	height, err := prefs.TableHeight(ctx, s.prefs)
	if err != nil {
		logger.Warn("table height unavailable, using default", "error", err)
	}

	rc := http.NewResponseController(w)
	started := false

	render := func(resp *core.WindowResponse, stream core.RowStream) error {
		started = true
		width := resp.ColumnCount()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		rows := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
			return stream(func(batch []core.VisibleRow) error {
				if err := templates.TableRows(batch, width).Render(ctx, out); err != nil {
					return err
				}
				return flush(out, rc)
			})
		})
		return templates.Table(resp, height).Render(templ.WithChildren(ctx, rows), w)
	}

	if _, err := s.service.StreamWindow(ctx, id, render); err != nil {
		if !started {
			s.fail(w, r, err)
			return
		}
		// Headers are gone; all that is left is to stop writing.
		logger.Warn("table stream aborted", "error", err)
	}
}

// flush pushes rendered markup through the component buffer and on to the
// client.
func flush(out io.Writer, rc *http.ResponseController) error {
	if b, ok := out.(interface{ Flush() error }); ok {
		if err := b.Flush(); err != nil {
			return err
		}
	}
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
