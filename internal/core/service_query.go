package core

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetview/internal/cache"
	"github.com/JonMunkholm/sheetview/internal/window"
)

// Files returns every loaded file in load order.
func (s *Service) Files() []FileInfo {
	s.mu.RLock()
	infos := make([]FileInfo, 0, len(s.order))
	for _, id := range s.order {
		infos = append(infos, s.files[id].snapshot())
	}
	s.mu.RUnlock()

	for i := range infos {
		infos[i].Compressed = s.compressedSheets(infos[i])
	}
	return infos
}

// File returns one loaded file.
func (s *Service) File(id string) (FileInfo, error) {
	s.mu.RLock()
	rec, ok := s.files[id]
	var info FileInfo
	if ok {
		info = rec.snapshot()
	}
	s.mu.RUnlock()
	if !ok {
		return FileInfo{}, ErrFileNotFound
	}
	info.Compressed = s.compressedSheets(info)
	return info, nil
}

func (s *Service) compressedSheets(info FileInfo) []string {
	var out []string
	for _, name := range info.Sheets {
		if e, ok := s.data.Peek(cache.DataKey(info.ID, name)); ok && e.Value.compressed != nil {
			out = append(out, name)
		}
	}
	return out
}

// Sheets returns a file's sheet names in workbook order. It fails with
// ErrParseInProgress until the first parse completes.
func (s *Service) Sheets(fileID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[fileID]
	if !ok {
		return nil, ErrFileNotFound
	}
	if len(rec.info.Sheets) == 0 {
		return nil, s.notReadyLocked(rec)
	}
	return slices.Clone(rec.info.Sheets), nil
}

func (s *Service) notReadyLocked(rec *fileRecord) error {
	if rec.info.JobState == JobFailed && rec.job != nil {
		if _, err := rec.job.Result(); err != nil {
			return err
		}
	}
	return ErrParseInProgress
}

// Sheet returns a parsed sheet. A sheet missing from the Data Cache is
// re-parsed from the file's retained payload; concurrent misses for the
// same sheet share one parse.
func (s *Service) Sheet(ctx context.Context, fileID, sheet string) (Table, error) {
	s.mu.RLock()
	rec, ok := s.files[fileID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrFileNotFound
	}
	if len(rec.info.Sheets) == 0 {
		err := s.notReadyLocked(rec)
		s.mu.RUnlock()
		return nil, err
	}
	if !rec.hasSheet(sheet) {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	version := rec.version
	msg := StartMessage{
		FileName:  rec.info.Name,
		Kind:      rec.format.Kind,
		Payload:   rec.data,
		Delimiter: rec.delimiter,
	}
	s.mu.RUnlock()

	key := cache.DataKey(fileID, sheet)
	if e, ok := s.data.Get(key); ok {
		return e.table(), nil
	}

	v, err, shared := s.reparse.Do(key+"@"+strconv.Itoa(version), func() (any, error) {
		s.logger.DebugContext(ctx, "re-parsing evicted sheet", "file_id", fileID, "sheet", sheet)

		term := s.runner.Run(ctx, msg, nil)
		if term.Kind != EventComplete {
			return nil, term.Err
		}
		idx := slices.IndexFunc(term.Sheets, func(d *Dataset) bool { return d.SheetName == sheet })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
		}
		d := term.Sheets[idx]

		s.storeData(key, &dataEntry{dataset: d, rec: rec, version: version})
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "shared re-parse", "file_id", fileID, "sheet", sheet)
	}
	return v.(*Dataset), nil
}

// OpenSession starts a view over a sheet. An empty sheet selects the first.
func (s *Service) OpenSession(ctx context.Context, fileID, sheet string, vp window.Viewport) (Session, error) {
	sheets, err := s.Sheets(fileID)
	if err != nil {
		return Session{}, err
	}
	if sheet == "" {
		sheet = sheets[0]
	}
	if !slices.Contains(sheets, sheet) {
		return Session{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	if vp.Height <= 0 {
		vp.Height = s.cfg.ViewportRows
	}

	now := s.now()
	sess := &session{
		info: Session{
			ID:        uuid.NewString(),
			FileID:    fileID,
			Sheet:     sheet,
			Viewport:  vp,
			CreatedAt: now,
			UpdatedAt: now,
		},
		throttle: window.NewThrottle[window.Viewport](s.cfg.FrameInterval, s.now),
	}

	s.mu.Lock()
	if _, ok := s.files[fileID]; !ok {
		s.mu.Unlock()
		return Session{}, ErrFileNotFound
	}
	s.sessions[sess.info.ID] = sess
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session opened", "session_id", sess.info.ID, "file_id", fileID, "sheet", sheet)
	return sess.snapshot(), nil
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Session returns a session's current state.
func (s *Service) Session(id string) (Session, error) {
	sess, err := s.session(id)
	if err != nil {
		return Session{}, err
	}
	return sess.snapshot(), nil
}

// SelectSheet switches a session to another sheet of the same file and
// resets its scroll position and page.
func (s *Service) SelectSheet(ctx context.Context, id, sheet string) (Session, error) {
	sess, err := s.session(id)
	if err != nil {
		return Session{}, err
	}
	info := sess.snapshot()
	sheets, err := s.Sheets(info.FileID)
	if err != nil {
		return Session{}, err
	}
	if !slices.Contains(sheets, sheet) {
		return Session{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	sess.throttle.Take()
	sess.mu.Lock()
	sess.info.Sheet = sheet
	sess.info.Viewport.Mode = ""
	sess.info.Viewport.Page = 1
	sess.info.Viewport.ScrollOffset = 0
	sess.info.UpdatedAt = s.now()
	info = sess.info
	sess.mu.Unlock()

	s.logger.DebugContext(ctx, "sheet selected", "session_id", id, "sheet", sheet)
	return info, nil
}

// UpdateViewport moves a session's viewport. Updates arriving faster than
// the frame interval are coalesced: the call returns (nil, false, nil) and
// the newest pending viewport is applied by the next Window call or the
// next admitted update.
func (s *Service) UpdateViewport(ctx context.Context, id string, vp window.Viewport) (*WindowResponse, bool, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, false, err
	}
	if vp.Height <= 0 {
		vp.Height = s.cfg.ViewportRows
	}

	v, ok := sess.throttle.Offer(vp)
	if !ok {
		return nil, false, nil
	}
	info := sess.setViewport(v, s.now())
	resp, err := s.window(ctx, info)
	return resp, true, err
}

// Window computes the render payload for a session's current viewport.
func (s *Service) Window(ctx context.Context, id string) (*WindowResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return s.window(ctx, sess.takePending(s.now()))
}

func (s *Service) window(ctx context.Context, info Session) (*WindowResponse, error) {
	s.mu.RLock()
	rec, version := s.files[info.FileID], 0
	if rec != nil {
		version = rec.version
	}
	s.mu.RUnlock()

	t, err := s.Sheet(ctx, info.FileID, info.Sheet)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	policy, narrowed, extrasDisabled := s.policy, s.policy != s.basePolicy, s.extrasDisabled
	s.mu.RUnlock()

	// A narrowed policy also caps a page size the session asked for.
	vp := info.Viewport
	if narrowed && vp.PageSize > policy.PageSize {
		vp.PageSize = policy.PageSize
	}

	total := max(t.RowCount()-1, 0)
	w := window.Compute(total, vp, policy)

	key := cache.RenderKey(info.FileID, info.Sheet, w.Start, w.End, w.Frozen)
	if cached, ok := s.render.Get(key); ok {
		resp := *cached
		resp.Meta.Window = w
		resp.Meta.Policy = policy
		return &resp, nil
	}

	resp := BuildWindow(t, w)
	resp.Meta.FileID = info.FileID
	resp.Meta.Policy = policy
	if !extrasDisabled && rec != nil {
		s.storeRender(rec, version, key, resp)
	}
	return resp, nil
}

// RowStream hands a window's rows to fn in batches, yielding between batches.
type RowStream func(fn func([]VisibleRow) error) error

// StreamWindow computes a session's window and passes it to render along with
// a RowStream over its rows, so a renderer can write its header, stream the
// body and close the markup in one pass. It returns the window metadata.
func (s *Service) StreamWindow(ctx context.Context, id string, render func(*WindowResponse, RowStream) error) (*WindowResponse, error) {
	resp, err := s.Window(ctx, id)
	if err != nil {
		return nil, err
	}
	stream := func(fn func([]VisibleRow) error) error {
		return window.Batches(ctx, resp.VisibleRows, s.cfg.BatchSize, fn)
	}
	if err := render(resp, stream); err != nil {
		return nil, err
	}
	return resp, nil
}
