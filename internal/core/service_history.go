package core

import (
	"context"
	"fmt"
	"slices"
)

// UndoResult reports what an undo restored.
type UndoResult struct {
	Entry HistoryEntry `json:"entry"`
	File  *FileInfo    `json:"file,omitempty"`
}

// Undo reverts the newest history entry. The entry stays in the log when
// the revert fails, so the undo can be retried.
func (s *Service) Undo(ctx context.Context) (UndoResult, error) {
	s.undoMu.Lock()
	defer s.undoMu.Unlock()

	entry, err := s.history.Peek()
	if err != nil {
		return UndoResult{}, err
	}

	switch entry.Kind {
	case OpRemoveFile:
		payload, ok := entry.Payload.(*removedFile)
		if !ok {
			s.history.Discard(entry)
			return UndoResult{Entry: entry}, fmt.Errorf("undo %s: unexpected payload %T", entry.Kind, entry.Payload)
		}
		info, err := s.restoreFile(ctx, payload)
		if err != nil {
			return UndoResult{Entry: entry}, fmt.Errorf("undo %s: %w", entry.Kind, err)
		}
		s.history.Discard(entry)
		return UndoResult{Entry: entry, File: &info}, nil
	default:
		s.history.Discard(entry)
		return UndoResult{Entry: entry}, fmt.Errorf("undo: unknown operation %q", entry.Kind)
	}
}

// restoreFile puts a removed file back at its old position. A file with
// sheets from a completed parse comes back Completed, and its sheets are
// re-parsed from the retained payload on first access. A file removed
// before its first parse completed is parsed again.
func (s *Service) restoreFile(ctx context.Context, p *removedFile) (FileInfo, error) {
	rec := p.rec

	s.mu.Lock()
	if s.nameLoadedLocked(rec.info.Name) {
		s.mu.Unlock()
		return FileInfo{}, &InputValidationError{FileName: rec.info.Name, Err: ErrDuplicateFile}
	}
	s.files[rec.info.ID] = rec
	index := min(max(p.index, 0), len(s.order))
	s.order = slices.Insert(s.order, index, rec.info.ID)

	completed := rec.data != nil && len(rec.info.Sheets) > 0
	if completed {
		rec.pending = nil
		rec.info.JobState = JobCompleted
		rec.info.Error = ""
	}
	payload := rec.pending
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "file restored", "file_id", rec.info.ID, "file", rec.info.Name)

	if !completed {
		if payload == nil {
			s.dropRecord(rec.info.ID)
			return FileInfo{}, fmt.Errorf("restore %q: no payload retained", rec.info.Name)
		}
		job, err := s.startJob(ctx, rec, payload)
		if err != nil {
			s.dropRecord(rec.info.ID)
			return FileInfo{}, err
		}
		if job.Sync {
			if _, err := job.Wait(ctx); err != nil {
				s.dropRecord(rec.info.ID)
				return FileInfo{}, err
			}
		}
	}
	return s.File(rec.info.ID)
}
