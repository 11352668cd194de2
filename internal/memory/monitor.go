package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Evictor carries out a plan. It must only touch completed, cache-resident
// data.
type Evictor interface {
	Apply(ctx context.Context, tier Tier, plan Plan) error
}

// EvictorFunc adapts a function to Evictor.
type EvictorFunc func(ctx context.Context, tier Tier, plan Plan) error

func (f EvictorFunc) Apply(ctx context.Context, tier Tier, plan Plan) error {
	return f(ctx, tier, plan)
}

// Config controls sampling cadence.
type Config struct {
	MinInterval time.Duration // lower bound between samples
	PollHigh    time.Duration // ratio > WarningRatio
	PollMedium  time.Duration // ratio > PreventiveRatio
	PollLow     time.Duration // otherwise
}

// DefaultConfig returns 3s rate limiting and 5s/15s/30s polling.
func DefaultConfig() Config {
	return Config{
		MinInterval: 3 * time.Second,
		PollHigh:    5 * time.Second,
		PollMedium:  15 * time.Second,
		PollLow:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinInterval <= 0 {
		c.MinInterval = d.MinInterval
	}
	if c.PollHigh <= 0 {
		c.PollHigh = d.PollHigh
	}
	if c.PollMedium <= 0 {
		c.PollMedium = d.PollMedium
	}
	if c.PollLow <= 0 {
		c.PollLow = d.PollLow
	}
	return c
}

// Status is the monitor's latest view.
type Status struct {
	Sample       Sample        `json:"sample"`
	Ratio        float64       `json:"ratio"`
	Tier         Tier          `json:"tier"`
	Plan         Plan          `json:"plan"`
	PollInterval time.Duration `json:"poll_interval_ns"`
	LastCheck    time.Time     `json:"last_check"`
	Checks       int64         `json:"checks"`
}

// Monitor samples memory and applies tier plans.
type Monitor struct {
	sampler Sampler
	evictor Evictor
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	last      Sample
	tier      Tier
	lastCheck time.Time
	checks    int64
}

// NewMonitor creates a monitor. A nil evictor only classifies; a nil
// logger uses slog.Default().
func NewMonitor(sampler Sampler, evictor Evictor, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sampler: sampler,
		evictor: evictor,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the clock. Used by tests.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Check samples and applies the resulting plan, unless the previous sample
// is younger than MinInterval. The bool reports whether a sample was taken.
func (m *Monitor) Check(ctx context.Context) (Status, bool, error) {
	m.mu.Lock()
	now := m.now()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.cfg.MinInterval {
		st := m.statusLocked()
		m.mu.Unlock()
		return st, false, nil
	}
	m.lastCheck = now
	m.mu.Unlock()

	s, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("memory sample failed", "error", err)
		return m.Status(), true, err
	}

	tier := Classify(s.Ratio())

	m.mu.Lock()
	prev := m.tier
	m.last, m.tier = s, tier
	m.checks++
	st := m.statusLocked()
	m.mu.Unlock()

	if tier != prev {
		m.logger.Info("memory tier changed",
			"from", prev.String(),
			"to", tier.String(),
			"ratio", st.Ratio,
			"used_bytes", s.UsedBytes,
			"limit_bytes", s.LimitBytes,
		)
	}

	// An empty plan is still delivered on a tier change so the evictor can
	// restore what earlier tiers narrowed.
	if m.evictor != nil && (!st.Plan.Empty() || tier != prev) {
		if err := m.evictor.Apply(ctx, tier, st.Plan); err != nil {
			m.logger.Error("memory plan failed", "tier", tier.String(), "error", err)
			return st, true, err
		}
	}
	return st, true, nil
}

// PollInterval returns the delay before the next sample given the last ratio.
func (m *Monitor) PollInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollIntervalLocked()
}

func (m *Monitor) pollIntervalLocked() time.Duration {
	switch r := m.last.Ratio(); {
	case r > WarningRatio:
		return m.cfg.PollHigh
	case r > PreventiveRatio:
		return m.cfg.PollMedium
	default:
		return m.cfg.PollLow
	}
}

// Status returns the latest observation without sampling.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() Status {
	return Status{
		Sample:       m.last,
		Ratio:        m.last.Ratio(),
		Tier:         m.tier,
		Plan:         PlanFor(m.tier),
		PollInterval: m.pollIntervalLocked(),
		LastCheck:    m.lastCheck,
		Checks:       m.checks,
	}
}

// Tier returns the current tier.
func (m *Monitor) Tier() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tier
}

// Run checks immediately, then again after each PollInterval, until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("memory monitor started",
		"min_interval", m.cfg.MinInterval,
		"poll_high", m.cfg.PollHigh,
		"poll_low", m.cfg.PollLow,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("memory monitor stopped")
			return
		case <-timer.C:
			m.Check(ctx)
			timer.Reset(m.PollInterval())
		}
	}
}
