package web

import (
	"net/http"

	"github.com/JonMunkholm/sheetview/internal/cache"
	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/memory"
	"github.com/JonMunkholm/sheetview/internal/prefs"
	"github.com/JonMunkholm/sheetview/internal/window"
)

// memoryResponse is the memory status payload.
type memoryResponse struct {
	Monitor *memory.Status     `json:"monitor,omitempty"`
	Caches  []cache.Stats      `json:"caches"`
	Policy  window.Policy      `json:"policy"`
	Parsing core.LimiterStatus `json:"parsing"`
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	resp := memoryResponse{
		Caches:  s.service.CacheStats(),
		Policy:  s.service.Policy(),
		Parsing: s.service.Runner().Limiter().Status(),
	}
	if s.memory != nil {
		st := s.memory.Status()
		resp.Monitor = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

type tableHeightResponse struct {
	Key    string `json:"key"`
	Height int    `json:"height"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}

func heightResponse(h int) tableHeightResponse {
	return tableHeightResponse{
		Key:    prefs.KeyTableHeight,
		Height: h,
		Min:    prefs.MinTableHeight,
		Max:    prefs.MaxTableHeight,
	}
}

func (s *Server) handleGetTableHeight(w http.ResponseWriter, r *http.Request) {
	h, err := prefs.TableHeight(r.Context(), s.prefs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heightResponse(h))
}

func (s *Server) handleSetTableHeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Height int `json:"height"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := prefs.SetTableHeight(r.Context(), s.prefs, req.Height); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heightResponse(req.Height))
}
