// Package memory samples resource usage and turns pressure into eviction
// plans.
//
// A Sampler reports used and limit bytes. The Monitor samples at a bounded
// rate, classifies the pressure ratio into a Tier, and hands the tier's Plan
// to an Evictor. How often it samples follows the pressure: frequently when
// memory is tight, rarely when it is not.
package memory

import (
	"context"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultLimit is used when no limit is configured or discoverable (1 GiB).
const DefaultLimit int64 = 1 << 30

// Sample is one observation of memory use.
type Sample struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}

// Ratio returns used/limit, or 0 when the limit is unknown.
func (s Sample) Ratio() float64 {
	if s.LimitBytes <= 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.LimitBytes)
}

// Sampler observes memory use.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (Sample, error)

func (f SamplerFunc) Sample(ctx context.Context) (Sample, error) { return f(ctx) }

// StaticSampler returns a fixed sample that can be changed with Set.
type StaticSampler struct {
	mu sync.Mutex
	s  Sample
}

// NewStaticSampler creates a sampler reporting used/limit.
func NewStaticSampler(used, limit int64) *StaticSampler {
	return &StaticSampler{s: Sample{UsedBytes: used, LimitBytes: limit}}
}

// Set replaces the reported sample.
func (s *StaticSampler) Set(used, limit int64) {
	s.mu.Lock()
	s.s = Sample{UsedBytes: used, LimitBytes: limit}
	s.mu.Unlock()
}

func (s *StaticSampler) Sample(context.Context) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s, nil
}

// ProcessSampler reports the resident set size of the current process. The
// limit is resolved once at construction.
type ProcessSampler struct {
	limit int64
	proc  *process.Process
}

// NewProcessSampler uses limit when positive, otherwise DiscoverLimit.
func NewProcessSampler(limit int64) *ProcessSampler {
	if limit <= 0 {
		limit = DiscoverLimit()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &ProcessSampler{limit: limit, proc: proc}
}

// Limit returns the resolved limit.
func (p *ProcessSampler) Limit() int64 { return p.limit }

// Sample falls back to the Go runtime's view of its own memory where the
// platform does not expose RSS.
func (p *ProcessSampler) Sample(ctx context.Context) (Sample, error) {
	if p.proc != nil {
		if mi, err := p.proc.MemoryInfoWithContext(ctx); err == nil && mi.RSS > 0 {
			return Sample{UsedBytes: int64(mi.RSS), LimitBytes: p.limit}, nil
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Sample{UsedBytes: int64(ms.Sys - ms.HeapReleased), LimitBytes: p.limit}, nil
}

// limitProviders are consulted in order after GOMEMLIMIT.
var limitProviders = []memlimit.Provider{memlimit.FromCgroup, memlimit.FromSystem}

// DiscoverLimit returns the runtime soft limit (GOMEMLIMIT), else the cgroup
// limit, else total system memory, else DefaultLimit.
func DiscoverLimit() int64 {
	if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
		return l
	}
	return firstLimit(limitProviders)
}

func firstLimit(providers []memlimit.Provider) int64 {
	for _, provide := range providers {
		l, err := provide()
		if err != nil || l == 0 || l >= math.MaxInt64 {
			continue
		}
		return int64(l)
	}
	return DefaultLimit
}

// Reclaim forces a collection and returns freed memory to the OS.
func Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}
