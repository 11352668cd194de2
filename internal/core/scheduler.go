package core

// scheduler.go runs background housekeeping.
//
// The sweeper wakes on a fixed interval and:
//  1. Purges expired entries from the Data Cache and Render Window Cache
//  2. Forgets finished jobs that no loaded file points at any more
//
// Expired entries are already never served, since every read checks age.
// Sweeping only releases their memory sooner.

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the sweeper runs.
const DefaultSweepInterval = time.Minute

// SweepResult counts what one sweep released.
type SweepResult struct {
	DataExpired   int
	RenderExpired int
	JobsForgotten int
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.logger.Info("cache sweeper started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cache sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one housekeeping pass.
func (s *Service) Sweep() SweepResult {
	start := time.Now()
	res := SweepResult{
		DataExpired:   s.data.PurgeExpired(),
		RenderExpired: s.render.PurgeExpired(),
	}

	s.mu.Lock()
	current := make(map[string]bool, len(s.files))
	for _, rec := range s.files {
		if rec.job != nil {
			current[rec.job.ID] = true
		}
	}
	for id, j := range s.jobs {
		if current[id] {
			continue
		}
		select {
		case <-j.Done():
			delete(s.jobs, id)
			res.JobsForgotten++
		default:
		}
	}
	s.mu.Unlock()

	if res != (SweepResult{}) {
		s.logger.Debug("sweep completed",
			"data_expired", res.DataExpired,
			"render_expired", res.RenderExpired,
			"jobs_forgotten", res.JobsForgotten,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res
}
