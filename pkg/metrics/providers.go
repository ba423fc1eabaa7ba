package metrics

import (
	"sync"
	"sync/atomic"
)

// CallStats is a point-in-time view of one provider's counters.
type CallStats struct {
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
}

// Calls counts requests made against a single upstream provider.
type Calls struct {
	requests atomic.Int64
	failures atomic.Int64
}

// Record notes one completed call; a non-nil error marks it failed.
// Safe to call on a nil receiver so clients built without a registry
// skip accounting.
func (c *Calls) Record(err error) {
	if c == nil {
		return
	}
	c.requests.Add(1)
	if err != nil {
		c.failures.Add(1)
	}
}

// Snapshot returns the counters as they stand.
func (c *Calls) Snapshot() CallStats {
	if c == nil {
		return CallStats{}
	}
	return CallStats{Requests: c.requests.Load(), Failures: c.failures.Load()}
}

// Registry hands out named call counters and aggregates their snapshots.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Calls
}

func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]*Calls)}
}

// Counter returns the counter registered under name, creating it on
// first use. A nil registry yields a nil counter.
func (r *Registry) Counter(name string) *Calls {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Calls{}
	r.counters[name] = c
	return c
}

// Snapshot captures every registered counter.
func (r *Registry) Snapshot() map[string]CallStats {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CallStats, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Snapshot()
	}
	return out
}
