package core

import (
	"context"
	"slices"

	"github.com/JonMunkholm/sheetview/internal/cache"
)

// removedFile is the undo payload of a remove-file operation.
type removedFile struct {
	rec   *fileRecord
	index int
}

// RemoveFile unloads a file. Its running job is cancelled, its cached sheets
// and windows are dropped, and sessions viewing it are closed. The removal
// is recorded in the history and can be undone.
func (s *Service) RemoveFile(ctx context.Context, fileID string) (FileInfo, error) {
	s.mu.Lock()
	rec, ok := s.files[fileID]
	if !ok {
		s.mu.Unlock()
		return FileInfo{}, ErrFileNotFound
	}

	if rec.job != nil {
		if rec.job.State() == JobRunning {
			rec.job.Cancel()
		}
		delete(s.jobs, rec.job.ID)
	}
	rec.gen++

	index := slices.Index(s.order, fileID)
	s.order = slices.Delete(s.order, index, index+1)
	delete(s.files, fileID)

	closed := 0
	for id, sess := range s.sessions {
		if sess.snapshot().FileID == fileID {
			delete(s.sessions, id)
			closed++
		}
	}
	info := rec.snapshot()
	s.mu.Unlock()

	match := cache.HasPrefix(cache.FilePrefix(fileID))
	s.data.RemoveIf(match)
	s.render.RemoveIf(match)

	s.history.Push(OpRemoveFile, "Removed "+info.Name, &removedFile{rec: rec, index: index})

	s.logger.InfoContext(ctx, "file removed",
		"file_id", fileID,
		"file", info.Name,
		"sessions_closed", closed,
	)
	return info, nil
}

// CloseSession ends a view session.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}
