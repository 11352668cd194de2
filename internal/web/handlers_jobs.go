package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
)

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Summary())
}

// handleCancelJob cancels a running parse. The file keeps its last
// completed sheets.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	job.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleJobEvents streams a job's events as Server-Sent Events. The event
// ID is the event sequence number; a client reconnecting with
// Last-Event-ID (or ?lastEventId=) skips events it already has. The stream
// ends after the complete or error event.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	lastSeq := 0
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastSeq, _ = strconv.Atoi(v)
	} else if v := r.URL.Query().Get("lastEventId"); v != "" {
		lastSeq, _ = strconv.Atoi(v)
	}

	events, unsubscribe, err := s.service.SubscribeJob(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	logger := logging.WithFields(r.Context(), "job_id", jobID)
	logger.Debug("event stream opened", "last_seq", lastSeq)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Synthesized terminal events carry no sequence number.
			if ev.Seq != 0 && ev.Seq <= lastSeq {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				logger.Debug("event stream write failed", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Debug("event stream flush failed", "error", err)
				return
			}
			if ev.Terminal() {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Seq != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
