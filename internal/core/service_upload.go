package core

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetview/internal/cache"
	"github.com/JonMunkholm/sheetview/internal/source"
)

// terminalSendTimeout bounds how long a slow subscriber can hold up the
// final event of a job.
const terminalSendTimeout = time.Second

// fileRecord is a loaded file. data is the payload behind the last
// completed parse and is kept so evicted sheets can be re-parsed. pending is
// the payload of a parse that has not completed.
type fileRecord struct {
	info      FileInfo
	format    Format
	data      []byte
	pending   []byte
	delimiter rune
	gen       int // bumped per started parse
	version   int // bumped per completed parse
	job       *Job
}

func (r *fileRecord) snapshot() FileInfo {
	info := r.info
	info.Sheets = slices.Clone(r.info.Sheets)
	info.Warnings = slices.Clone(r.info.Warnings)
	return info
}

func (r *fileRecord) hasSheet(name string) bool {
	return slices.Contains(r.info.Sheets, name)
}

func (s *Service) nameLoadedLocked(name string) bool {
	for _, rec := range s.files {
		if rec.info.Name == name {
			return true
		}
	}
	return false
}

func (s *Service) nameLoaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameLoadedLocked(name)
}

// preparePayload validates name and payload and inflates zstd input.
func (s *Service) preparePayload(name string, data []byte, loaded func(string) bool) (Format, []byte, error) {
	format, compressed, err := ValidateInput(name, int64(len(data)), s.cfg.MaxFileSize, loaded)
	if err != nil {
		return Format{}, nil, err
	}
	if !compressed {
		return format, data, nil
	}

	raw, err := source.DecompressBytes(data, s.cfg.MaxFileSize)
	switch {
	case errors.Is(err, source.ErrSizeLimit):
		return Format{}, nil, &InputValidationError{
			FileName: name,
			Reason:   "decompressed size exceeds " + FormatSize(s.cfg.MaxFileSize),
			Err:      ErrFileTooLarge,
		}
	case err != nil:
		return Format{}, nil, &ParseError{FileName: name, Pattern: "zstd stream", Err: err}
	case len(raw) == 0:
		return Format{}, nil, &InputValidationError{FileName: name, Err: ErrEmptyFile}
	}
	return format, raw, nil
}

// AddFile validates and loads a new file, starting its parse job. Small
// inputs are parsed before AddFile returns; larger ones report JobRunning
// and finish in the background. A synchronous parse failure is returned and
// the file is not kept.
func (s *Service) AddFile(ctx context.Context, name string, data []byte) (FileInfo, error) {
	format, payload, err := s.preparePayload(name, data, s.nameLoaded)
	if err != nil {
		return FileInfo{}, err
	}

	rec := &fileRecord{
		info: FileInfo{
			ID:        uuid.NewString(),
			Name:      name,
			Kind:      format.Kind,
			Size:      int64(len(payload)),
			SizeLabel: FormatSize(int64(len(payload))),
			JobState:  JobIdle,
			LoadedAt:  s.now(),
		},
		format: format,
	}

	s.mu.Lock()
	if s.nameLoadedLocked(name) {
		s.mu.Unlock()
		return FileInfo{}, &InputValidationError{FileName: name, Err: ErrDuplicateFile}
	}
	s.files[rec.info.ID] = rec
	s.order = append(s.order, rec.info.ID)
	s.mu.Unlock()

	logger := s.logger.With("file_id", rec.info.ID, "file", name)
	logger.Info("file added", "kind", format.Kind, "size", rec.info.SizeLabel)

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
	return s.File(rec.info.ID)
}

// ReloadFile replaces the payload of a loaded file and re-parses it. A job
// still running for the file is cancelled. Sheets from the last completed
// parse stay readable until the new job completes, and stay in place if it
// fails.
func (s *Service) ReloadFile(ctx context.Context, fileID string, data []byte) (FileInfo, error) {
	s.mu.RLock()
	rec, ok := s.files[fileID]
	var name string
	if ok {
		name = rec.info.Name
	}
	s.mu.RUnlock()
	if !ok {
		return FileInfo{}, ErrFileNotFound
	}

	_, payload, err := s.preparePayload(name, data, nil)
	if err != nil {
		return FileInfo{}, err
	}

	s.logger.Info("file reload requested", "file_id", fileID, "file", name)

	job, err := s.startJob(ctx, rec, payload)
	if err != nil {
		return FileInfo{}, err
	}
	if job.Sync {
		if _, err := job.Wait(ctx); err != nil {
			return FileInfo{}, err
		}
	}
	return s.File(fileID)
}

// startJob supersedes any running job for rec and starts a parse of payload.
func (s *Service) startJob(ctx context.Context, rec *fileRecord, payload []byte) (*Job, error) {
	s.mu.Lock()
	if rec.job != nil && rec.job.State() == JobRunning {
		rec.job.Cancel()
		s.logger.Info("superseded running parse", "file_id", rec.info.ID, "job_id", rec.job.ID)
	}
	rec.gen++
	rec.pending = payload
	gen := rec.gen
	msg := StartMessage{
		FileName:  rec.info.Name,
		Kind:      rec.format.Kind,
		Payload:   payload,
		Delimiter: rec.format.Delimiter,
	}
	s.mu.Unlock()

	job, err := s.runner.Start(ctx, msg)
	if err != nil {
		s.mu.Lock()
		if rec.gen == gen {
			rec.info.JobState = JobFailed
			rec.info.Error = MapError(err).Message
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if rec.gen == gen {
		rec.job = job
		rec.info.JobID = job.ID
		rec.info.JobState = job.State()
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if job.Sync {
		s.consume(rec, gen, job, payload)
	} else {
		go s.consume(rec, gen, job, payload)
	}
	return job, nil
}

// consume relays job events to subscribers and records the outcome.
func (s *Service) consume(rec *fileRecord, gen int, job *Job, payload []byte) {
	var term *Event
	for ev := range job.Events() {
		if ev.Terminal() {
			term = &ev
			continue
		}
		s.broadcast(job.ID, ev)
	}
	<-job.Done()
	s.closeListeners(job, term)

	res, err := job.Result()
	s.completeJob(rec, gen, job, payload, res, err)
}

func (s *Service) completeJob(rec *fileRecord, gen int, job *Job, payload []byte, res *ParseResult, err error) {
	logger := s.logger.With("file_id", rec.info.ID, "job_id", job.ID)

	s.mu.Lock()
	_, present := s.files[rec.info.ID]
	if !present || rec.gen != gen {
		s.mu.Unlock()
		logger.Debug("discarding stale parse result")
		return
	}

	if err != nil {
		rec.info.JobState = JobFailed
		rec.info.Error = MapError(err).Message
		s.mu.Unlock()
		logger.Warn("parse failed, keeping previous sheets", "error", err)
		return
	}

	sheets := make([]string, len(res.Sheets))
	for i, d := range res.Sheets {
		sheets[i] = d.SheetName
	}
	oldSheets := rec.info.Sheets
	rec.data, rec.pending = payload, nil
	rec.version++
	version := rec.version
	rec.delimiter = res.Delimiter
	rec.info.Size = int64(len(payload))
	rec.info.SizeLabel = FormatSize(rec.info.Size)
	rec.info.JobState = JobCompleted
	rec.info.Error = ""
	rec.info.Warnings = res.Warnings
	rec.info.Sheets = sheets
	s.mu.Unlock()

	s.render.RemoveIf(cache.HasPrefix(cache.FilePrefix(rec.info.ID)))
	for _, name := range oldSheets {
		if !slices.Contains(sheets, name) {
			s.data.Remove(cache.DataKey(rec.info.ID, name))
		}
	}
	for _, d := range res.Sheets {
		s.storeData(cache.DataKey(rec.info.ID, d.SheetName), &dataEntry{dataset: d, rec: rec, version: version})
	}

	logger.Info("file parsed",
		"sheets", len(res.Sheets),
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"warnings", len(res.Warnings),
	)
}

func (s *Service) dropRecord(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.files[id]; ok && rec.job != nil {
		delete(s.jobs, rec.job.ID)
	}
	delete(s.files, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}

// Job returns a parse job by ID.
func (s *Service) Job(jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// SubscribeJob returns a channel of the job's remaining events. The channel
// closes after the terminal event. For a job that already finished, the
// channel carries one synthesized terminal event. Call the returned func to
// unsubscribe early.
func (s *Service) SubscribeJob(jobID string) (<-chan Event, func(), error) {
	j, err := s.Job(jobID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, 16)

	s.listenersMu.Lock()
	select {
	case <-j.Done():
		s.listenersMu.Unlock()
		ch <- finalEvent(j)
		close(ch)
		return ch, func() {}, nil
	default:
	}
	s.listeners[jobID] = append(s.listeners[jobID], ch)
	s.listenersMu.Unlock()

	unsubscribe := func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		subs := s.listeners[jobID]
		for i, c := range subs {
			if c == ch {
				s.listeners[jobID] = slices.Delete(subs, i, i+1)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// finalEvent describes the outcome of a finished job.
func finalEvent(j *Job) Event {
	res, err := j.Result()
	pct, msg := j.Progress()
	if err != nil {
		return Event{Kind: EventError, Percent: pct, Message: MapError(err).Message, Error: err.Error(), Err: err}
	}
	names := make([]string, len(res.Sheets))
	for i, d := range res.Sheets {
		names[i] = d.SheetName
	}
	return Event{
		Kind:       EventComplete,
		Percent:    100,
		Message:    msg,
		SheetNames: names,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Warnings:   res.Warnings,
	}
}

// broadcast sends a progress event to every subscriber of the job, dropping
// it for subscribers that are not keeping up.
func (s *Service) broadcast(jobID string, ev Event) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	for _, ch := range s.listeners[jobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeListeners delivers the terminal event to every subscriber of a
// finished job and ends the subscriptions. A cancelled job emits no
// terminal event, so term is nil and one is synthesized. Slow subscribers
// get up to terminalSendTimeout.
func (s *Service) closeListeners(j *Job, term *Event) {
	s.listenersMu.Lock()
	subs := s.listeners[j.ID]
	delete(s.listeners, j.ID)
	s.listenersMu.Unlock()

	final := finalEvent(j)
	if term != nil {
		final = *term
	}
	for _, ch := range subs {
		select {
		case ch <- final:
		case <-time.After(terminalSendTimeout):
			s.logger.Warn("subscriber missed terminal event", "job_id", j.ID)
		}
		close(ch)
	}
}

// JobSummary is a compact view of a job for listings.
type JobSummary struct {
	ID       string   `json:"id"`
	FileName string   `json:"file_name"`
	State    JobState `json:"state"`
	Percent  int      `json:"percent"`
	Message  string   `json:"message"`
	Sync     bool     `json:"sync"`
}

// Summary reports the job's current state.
func (j *Job) Summary() JobSummary {
	pct, msg := j.Progress()
	return JobSummary{
		ID:       j.ID,
		FileName: j.FileName,
		State:    j.State(),
		Percent:  pct,
		Message:  msg,
		Sync:     j.Sync,
	}
}
