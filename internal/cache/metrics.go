package cache

import "sync/atomic"

// Metrics counts cache events.
type Metrics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
	removals    atomic.Int64
}

// Stats is a point-in-time copy of a cache's counters and occupancy.
type Stats struct {
	Name        string `json:"name"`
	Len         int    `json:"len"`
	Capacity    int    `json:"capacity"`
	Bytes       int64  `json:"bytes"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
	Removals    int64  `json:"removals"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Evictions:   m.evictions.Load(),
		Expirations: m.expirations.Load(),
		Removals:    m.removals.Load(),
	}
}
