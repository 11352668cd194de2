package core

// job.go runs the parse pipeline behind a message boundary.
//
// A job receives one StartMessage and produces an ordered stream of events:
// zero or more progress events with non-decreasing percentages, then exactly
// one terminal event (complete or error). Small inputs run in the caller's
// goroutine and their events are delivered pre-buffered. Larger inputs run in
// a worker goroutine holding a Limiter slot; the worker shares nothing with
// the caller and hands results back only through the terminal event.
//
// Cancel stops a worker abruptly. No terminal event is delivered for a
// cancelled job, the events channel is closed, and the job ends Failed with
// ErrJobCancelled.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a parse job.
type JobState string

const (
	JobIdle      JobState = "idle"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// EventKind tags a job event.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// StartMessage is the single input to a parse job.
type StartMessage struct {
	FileName  string
	Kind      FileKind
	Payload   []byte
	Delimiter rune // 0 means detect
}

// Event is one message from a parse job.
type Event struct {
	Seq        int        `json:"seq"`
	Kind       EventKind  `json:"kind"`
	Percent    int        `json:"percent"`
	Message    string     `json:"message"`
	Sheets     []*Dataset `json:"-"`
	SheetNames []string   `json:"sheets,omitempty"`
	ElapsedMs  int64      `json:"elapsed_ms,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	Error      string     `json:"error,omitempty"`
	Err        error      `json:"-"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool { return e.Kind != EventProgress }

// ParseResult is the outcome of a completed job.
type ParseResult struct {
	Sheets    []*Dataset
	Warnings  []string
	Elapsed   time.Duration
	Delimiter rune
}

// RunnerConfig controls job execution.
type RunnerConfig struct {
	SyncThreshold int64         // payloads below this size parse synchronously
	EventBuffer   int           // capacity of a worker's events channel
	JobTimeout    time.Duration // upper bound on a worker's run time
	MaxConcurrent int
	MaxWait       time.Duration
}

// DefaultSyncThreshold is the payload size below which parsing is synchronous.
const DefaultSyncThreshold int64 = 5 << 20

// Runner starts parse jobs.
type Runner struct {
	cfg     RunnerConfig
	limiter *Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a runner. A nil logger uses slog.Default().
func NewRunner(cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = DefaultSyncThreshold
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 32
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		logger:  logger,
		now:     time.Now,
	}
}

// Limiter exposes the worker slot limiter for status and drain.
func (r *Runner) Limiter() *Limiter { return r.limiter }

// Job is a handle on one parse.
type Job struct {
	ID       string
	FileName string
	Sync     bool

	events    chan Event
	done      chan struct{}
	cancel    context.CancelFunc
	cancelled atomic.Bool

	mu      sync.RWMutex
	state   JobState
	percent int
	message string
	result  *ParseResult
	err     error
}

// Events returns the job's event stream. It is closed after the terminal
// event, or without one when the job is cancelled.
func (j *Job) Events() <-chan Event { return j.events }

// Done is closed when the job reaches Completed or Failed.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns the last reported percentage and status message.
func (j *Job) Progress() (int, string) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.percent, j.message
}

// Result returns the parse result and error once the job is done.
func (j *Job) Result() (*ParseResult, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}

// Cancel terminates the job. Further events are discarded.
func (j *Job) Cancel() {
	if j.cancelled.CompareAndSwap(false, true) {
		j.cancel()
	}
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (*ParseResult, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) observe(e Event) {
	j.mu.Lock()
	j.percent, j.message = e.Percent, e.Message
	j.mu.Unlock()
}

func (j *Job) finish(term Event, elapsed time.Duration, delim rune) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.cancelled.Load():
		j.state = JobFailed
		j.err = ErrJobCancelled
	case term.Kind == EventComplete:
		j.state = JobCompleted
		j.percent, j.message = 100, term.Message
		j.result = &ParseResult{Sheets: term.Sheets, Warnings: term.Warnings, Elapsed: elapsed, Delimiter: delim}
	default:
		var we *WorkerError
		if errors.As(term.Err, &we) && we.JobID == "" {
			we.JobID = j.ID
		}
		j.state = JobFailed
		j.message = term.Message
		j.err = term.Err
	}
}

// Start launches a parse job. A synchronous job runs under ctx and stops when
// the caller goes away. A background job outlives ctx's cancellation but keeps
// its values. ErrTooManyJobs is returned when no worker slot frees up in time.
func (r *Runner) Start(ctx context.Context, msg StartMessage) (*Job, error) {
	inline := int64(len(msg.Payload)) < r.cfg.SyncThreshold
	parent := ctx
	if !inline {
		parent = context.WithoutCancel(ctx)
	}
	base, cancel := context.WithCancel(parent)
	j := &Job{
		ID:       uuid.NewString(),
		FileName: msg.FileName,
		Sync:     inline,
		done:     make(chan struct{}),
		cancel:   cancel,
		state:    JobIdle,
	}
	logger := r.logger.With("job_id", j.ID, "file", msg.FileName, "kind", msg.Kind)

	if j.Sync {
		r.runSync(base, j, msg, logger)
		return j, nil
	}

	if err := r.limiter.Acquire(ctx); err != nil {
		cancel()
		return nil, err
	}
	j.events = make(chan Event, r.cfg.EventBuffer)
	j.setRunning()
	go r.work(base, j, msg, logger)
	return j, nil
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.state = JobRunning
	j.mu.Unlock()
}

func (r *Runner) runSync(ctx context.Context, j *Job, msg StartMessage, logger *slog.Logger) {
	defer j.cancel()
	j.setRunning()

	var buffered []Event
	start := r.now()
	var delim rune
	term := r.run(ctx, msg, &delim, func(e Event) {
		j.observe(e)
		buffered = append(buffered, e)
	})
	buffered = append(buffered, term)
	j.finish(term, r.now().Sub(start), delim)

	j.events = make(chan Event, len(buffered))
	for _, e := range buffered {
		j.events <- e
	}
	close(j.events)
	close(j.done)
	r.logFinish(logger, j, term)
}

func (r *Runner) work(ctx context.Context, j *Job, msg StartMessage, logger *slog.Logger) {
	defer r.limiter.Release()
	defer close(j.done)
	defer close(j.events)
	defer j.cancel()

	runCtx, stop := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer stop()

	send := func(e Event) bool {
		select {
		case j.events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	logger.Debug("parse worker started", "bytes", len(msg.Payload))
	start := r.now()
	var delim rune
	term := r.run(runCtx, msg, &delim, func(e Event) {
		if j.cancelled.Load() {
			return
		}
		j.observe(e)
		send(e)
	})
	j.finish(term, r.now().Sub(start), delim)
	if !j.cancelled.Load() {
		send(term)
	}
	r.logFinish(logger, j, term)
}

func (r *Runner) logFinish(logger *slog.Logger, j *Job, term Event) {
	switch state := j.State(); {
	case state == JobCompleted:
		logger.Info("parse completed", "sheets", len(term.Sheets), "elapsed_ms", term.ElapsedMs, "sync", j.Sync)
	case j.cancelled.Load():
		logger.Info("parse cancelled")
	default:
		logger.Warn("parse failed", "error", term.Err)
	}
}

// Run executes the pipeline in the calling goroutine. Progress events are
// passed to emit in order and the terminal event is returned, not emitted.
// A panic in the pipeline becomes a retryable WorkerError.
func (r *Runner) Run(ctx context.Context, msg StartMessage, emit func(Event)) Event {
	var delim rune
	return r.run(ctx, msg, &delim, emit)
}

func (r *Runner) run(ctx context.Context, msg StartMessage, delim *rune, emit func(Event)) (term Event) {
	start := r.now()
	seq, last := 0, 0
	progress := func(pct int, message string) {
		if pct < last {
			pct = last
		}
		if pct > 99 {
			pct = 99
		}
		last = pct
		seq++
		if emit != nil {
			emit(Event{Seq: seq, Kind: EventProgress, Percent: pct, Message: message})
		}
	}
	fail := func(err error) Event {
		seq++
		return Event{Seq: seq, Kind: EventError, Percent: last, Message: MapError(err).Message, Error: err.Error(), Err: err}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := &WorkerError{
				FileName:  msg.FileName,
				Err:       fmt.Errorf("panic: %v", rec),
				Retryable: true,
				Remedy:    "reload the file",
			}
			r.logger.Error("parse worker panic", "file", msg.FileName, "panic", rec, "stack", string(debug.Stack()))
			term = fail(err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var (
		sheets   []*Dataset
		warnings []string
		err      error
	)
	switch msg.Kind {
	case KindWorkbook:
		sheets, err = r.parseWorkbook(ctx, msg, progress)
	default:
		sheets, warnings, err = r.parseDelimited(ctx, msg, delim, progress)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &WorkerError{FileName: msg.FileName, Err: err, Retryable: true, Remedy: "try a smaller file"}
		}
		return fail(err)
	}

	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.SheetName
	}
	seq++
	return Event{
		Seq:        seq,
		Kind:       EventComplete,
		Percent:    100,
		Message:    fmt.Sprintf("Parsed %d sheet(s)", len(sheets)),
		Sheets:     sheets,
		SheetNames: names,
		ElapsedMs:  r.now().Sub(start).Milliseconds(),
		Warnings:   warnings,
	}
}

// CSVSheetName is the sheet name given to delimited inputs.
const CSVSheetName = "Sheet1"

func (r *Runner) parseDelimited(ctx context.Context, msg StartMessage, delim *rune, progress func(int, string)) ([]*Dataset, []string, error) {
	progress(10, "Analyzing file format...")

	text, encWarnings := DecodeText(msg.FileName, msg.Payload)
	warnings := make([]string, len(encWarnings))
	for i, w := range encWarnings {
		warnings[i] = w.Error()
	}
	if strings.TrimSpace(text) == "" {
		return nil, warnings, &InputValidationError{FileName: msg.FileName, Err: ErrEmptyFile}
	}

	text = NormalizeLineEndings(text)
	*delim = msg.Delimiter
	if *delim == 0 {
		*delim = DetectDelimiter(text)
	}

	progress(20, "Parsing rows...")
	p := Parser{
		Delimiter: *delim,
		OnProgress: func(rows, pos, total int) {
			progress(20+pos*70/total, fmt.Sprintf("Parsed %d rows", rows))
		},
	}
	records, err := p.Parse(ctx, text)
	if err != nil {
		return nil, warnings, err
	}

	rows, err := CoerceRecords(ctx, records)
	if err != nil {
		return nil, warnings, err
	}
	return []*Dataset{NewDataset(CSVSheetName, rows)}, warnings, nil
}

func (r *Runner) parseWorkbook(ctx context.Context, msg StartMessage, progress func(int, string)) ([]*Dataset, error) {
	progress(10, "Reading workbook...")
	progress(50, "Parsing sheets...")
	return ReadWorkbook(ctx, msg.FileName, msg.Payload, func(done, total int, sheet string) {
		progress(50+done*40/total, "Parsed sheet "+sheet)
	})
}
