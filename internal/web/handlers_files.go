package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/prefs"
	"github.com/JonMunkholm/sheetview/internal/web/templates"
)

// handleIndex renders the loaded files page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	height, err := prefs.TableHeight(r.Context(), s.prefs)
	if err != nil {
		logging.FromContext(r.Context()).Warn("table height unavailable, using default", "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.FileList(s.service.Files(), height).Render(r.Context(), w)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Files())
}

// readUpload reads the multipart "file" part, bounded by the configured
// size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := s.cfg.Parse.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, &core.InputValidationError{Reason: "request body too large", Err: core.ErrFileTooLarge}
		}
		return "", nil, errNoFile
	}
	defer file.Close()

	if header.Size > limit {
		return header.Filename, nil, &core.InputValidationError{
			FileName: header.Filename,
			Reason:   "exceeds " + core.FormatSize(limit),
			Err:      core.ErrFileTooLarge,
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return header.Filename, nil, err
	}
	return header.Filename, data, nil
}

// uploadStatus is 201 for a file parsed in the request and 202 for one
// still parsing.
func uploadStatus(info core.FileInfo) int {
	if info.JobState == core.JobRunning {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.service.AddFile(r.Context(), name, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, uploadStatus(info), info)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.File(chi.URLParam(r, "fileID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReloadFile(w http.ResponseWriter, r *http.Request) {
	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info, err := s.service.ReloadFile(r.Context(), chi.URLParam(r, "fileID"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if info.JobState == core.JobRunning {
		status = http.StatusAccepted
	}
	writeJSON(w, status, info)
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.RemoveFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.service.Sheets(chi.URLParam(r, "fileID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": sheets})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.service.History().Entries()})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Undo(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
