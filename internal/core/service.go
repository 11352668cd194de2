package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/sheetview/internal/cache"
	"github.com/JonMunkholm/sheetview/internal/memory"
	"github.com/JonMunkholm/sheetview/internal/window"
)

// Cache defaults.
const (
	DefaultDataCapacity           = 5
	DefaultDataTTL                = 5 * time.Minute
	DefaultRenderCapacity         = 20
	DefaultRenderTTL              = 30 * time.Second
	DefaultRenderCapUnderPressure = 10
)

// Config controls a Service.
type Config struct {
	MaxFileSize int64
	Runner      RunnerConfig

	DataCapacity           int
	DataTTL                time.Duration
	RenderCapacity         int
	RenderTTL              time.Duration
	RenderCapUnderPressure int

	HistorySize   int
	PageSize      int
	FrameInterval time.Duration
	BatchSize     int
	ViewportRows  int
}

func (c Config) withDefaults() Config {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.DataCapacity <= 0 {
		c.DataCapacity = DefaultDataCapacity
	}
	if c.DataTTL <= 0 {
		c.DataTTL = DefaultDataTTL
	}
	if c.RenderCapacity <= 0 {
		c.RenderCapacity = DefaultRenderCapacity
	}
	if c.RenderTTL <= 0 {
		c.RenderTTL = DefaultRenderTTL
	}
	if c.RenderCapUnderPressure <= 0 {
		c.RenderCapUnderPressure = DefaultRenderCapUnderPressure
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.PageSize <= 0 {
		c.PageSize = window.DefaultPageSize
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = window.DefaultFrameInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = window.DefaultBatchSize
	}
	if c.ViewportRows <= 0 {
		c.ViewportRows = window.DefaultViewportHeight
	}
	return c
}

// Service owns loaded files, their parse jobs, both caches, view sessions,
// and the undo history.
type Service struct {
	cfg     Config
	logger  *slog.Logger
	runner  *Runner
	data    *cache.Cache[*dataEntry]
	render  *cache.Cache[*WindowResponse]
	history *History
	undoMu  sync.Mutex
	reparse singleflight.Group
	now     func() time.Time

	mu             sync.RWMutex
	files          map[string]*fileRecord
	order          []string
	jobs           map[string]*Job
	sessions       map[string]*session
	basePolicy     window.Policy
	policy         window.Policy
	extrasDisabled bool

	listenersMu sync.Mutex
	listeners   map[string][]chan Event
}

// NewService creates a service. A nil logger uses slog.Default().
func NewService(cfg Config, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	policy := window.DefaultPolicy()
	policy.PageSize = cfg.PageSize

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		runner:     NewRunner(cfg.Runner, logger),
		history:    NewHistory(cfg.HistorySize),
		now:        time.Now,
		files:      make(map[string]*fileRecord),
		jobs:       make(map[string]*Job),
		sessions:   make(map[string]*session),
		basePolicy: policy,
		policy:     policy,
		listeners:  make(map[string][]chan Event),
	}
	s.data = cache.New(cache.Options[*dataEntry]{
		Name:     "data",
		Capacity: cfg.DataCapacity,
		TTL:      cfg.DataTTL,
		Now:      s.clock,
		OnEvict: func(key string, _ *dataEntry) {
			logger.Debug("dataset evicted", "key", key)
		},
	})
	s.render = cache.New(cache.Options[*WindowResponse]{
		Name:     "render",
		Capacity: cfg.RenderCapacity,
		TTL:      cfg.RenderTTL,
		Now:      s.clock,
	})
	return s
}

// SetClock overrides the clock used for caches and timestamps. It must be
// called before the service is shared. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) clock() time.Time { return s.now() }

// Runner exposes the parse runner for limiter status.
func (s *Service) Runner() *Runner { return s.runner }

// History exposes the undo log.
func (s *Service) History() *History { return s.history }

// Policy returns the windowing policy currently in force.
func (s *Service) Policy() window.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// CacheStats reports both caches.
func (s *Service) CacheStats() []cache.Stats {
	return []cache.Stats{s.data.Stats(), s.render.Stats()}
}

// dataEntry holds exactly one resident form of a sheet, tagged with the
// file version it was parsed from.
type dataEntry struct {
	dataset    *Dataset
	compressed *CompressedDataset
	rec        *fileRecord
	version    int
}

func (e *dataEntry) table() Table {
	if e.compressed != nil {
		return e.compressed
	}
	return e.dataset
}

func (e *dataEntry) size() int64 { return e.table().EstimateSize() }

// currentLocked reports whether rec is still loaded at version. Callers hold
// s.mu.
func (s *Service) currentLocked(rec *fileRecord, version int) bool {
	return s.files[rec.info.ID] == rec && rec.version == version
}

// storeData caches a sheet unless its file was reloaded or removed since the
// entry was parsed. The check and the Put share s.mu so a completing parse
// cannot slip in between.
func (s *Service) storeData(key string, e *dataEntry) bool {
	size := e.size()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.currentLocked(e.rec, e.version) {
		return false
	}
	s.data.Put(key, e, size)
	return true
}

// storeRender caches a window built from rec at version, under the same rule
// as storeData.
func (s *Service) storeRender(rec *fileRecord, version int, key string, resp *WindowResponse) bool {
	size := resp.estimateSize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.currentLocked(rec, version) {
		return false
	}
	s.render.Put(key, resp, size)
	return true
}

// activeKeys returns the Data Cache keys of every sheet open in a session.
func (s *Service) activeKeys() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]bool, len(s.sessions))
	for _, sess := range s.sessions {
		info := sess.snapshot()
		keys[cache.DataKey(info.FileID, info.Sheet)] = true
	}
	return keys
}

// Apply carries out a memory plan. It implements memory.Evictor.
// Only completed datasets live in the caches, so in-flight jobs are never
// touched. Sheets open in a session are compressed but never released.
// Windowing and render cache limits follow the latest tier, so a lower tier
// restores what a higher one narrowed.
func (s *Service) Apply(ctx context.Context, tier memory.Tier, plan memory.Plan) error {
	logger := s.logger.With("tier", tier.String())

	if plan.PurgeExpired {
		n := s.data.PurgeExpired() + s.render.PurgeExpired()
		logger.Debug("purged expired cache entries", "count", n)
	}
	if plan.CapRenderCache || plan.ClearCaches {
		s.render.SetCapacity(s.cfg.RenderCapUnderPressure)
	} else {
		s.render.SetCapacity(s.cfg.RenderCapacity)
	}

	active := s.activeKeys()

	if plan.CompressActive {
		s.compressKeys(ctx, active, logger)
	}
	if plan.ClearCaches {
		s.render.Clear()
	}
	if plan.ReleaseInactive || plan.ClearCaches {
		n := s.data.RemoveIf(func(key string) bool { return !active[key] })
		logger.Info("released inactive datasets", "count", n)
	}

	s.mu.Lock()
	switch {
	case plan.MinimalWindowing:
		s.policy = s.basePolicy.Minimal()
	case plan.ShrinkPageSize || plan.Virtualize || plan.ShrinkView:
		s.policy = s.basePolicy.Shrink()
	default:
		s.policy = s.basePolicy
	}
	s.extrasDisabled = plan.DisableExtras
	s.mu.Unlock()

	if plan.Reclaim {
		memory.Reclaim()
	}
	if plan.Empty() {
		logger.Info("memory pressure cleared, defaults restored")
	}
	return ctx.Err()
}

func (s *Service) compressKeys(ctx context.Context, keys map[string]bool, logger *slog.Logger) {
	for key := range keys {
		if ctx.Err() != nil {
			return
		}
		e, ok := s.data.Peek(key)
		if !ok || e.Value.dataset == nil {
			continue
		}
		c, ok := Compress(e.Value.dataset)
		if !ok {
			continue
		}
		entry := &dataEntry{compressed: c, rec: e.Value.rec, version: e.Value.version}
		if !s.storeData(key, entry) {
			continue
		}
		logger.Info("compressed active dataset",
			"key", key,
			"before_bytes", e.Size,
			"after_bytes", entry.size(),
		)
	}
}

// Shutdown cancels running jobs and waits for their workers to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, j := range s.jobs {
		if j.State() == JobRunning {
			j.Cancel()
		}
	}
	s.mu.RUnlock()
	return s.runner.Limiter().WaitForDrain(ctx)
}
