package location

import (
	"context"
	"sync"
	"time"
)

// SearchFunc performs the remote place search for a debounced query.
type SearchFunc func(ctx context.Context, query string) ([]Location, error)

// DeliverFunc receives the outcome of the latest search.
type DeliverFunc func(query string, results []Location, err error)

// Debouncer coalesces a stream of search queries: a new query restarts the
// quiet window and only the last query within it triggers a remote call.
// Every issued request carries a monotonically increasing sequence number
// and responses that are no longer the latest are discarded, so a slow
// early response can never overwrite a later one.
type Debouncer struct {
	delay     time.Duration
	search    SearchFunc
	deliver   DeliverFunc
	afterFunc func(time.Duration, func()) *time.Timer

	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
	disposed bool
}

// NewDebouncer builds a debouncer with the given quiet window.
func NewDebouncer(delay time.Duration, search SearchFunc, deliver DeliverFunc) *Debouncer {
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &Debouncer{
		delay:     delay,
		search:    search,
		deliver:   deliver,
		afterFunc: time.AfterFunc,
	}
}

// Query restarts the quiet window for query. An empty query cancels any
// pending search without issuing a new one.
func (d *Debouncer) Query(ctx context.Context, query string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if query == "" {
		return
	}

	target := d.seq
	d.timer = d.afterFunc(d.delay, func() {
		d.fire(ctx, query, target)
	})
}

func (d *Debouncer) fire(ctx context.Context, query string, target uint64) {
	d.mu.Lock()
	if d.disposed || d.seq != target {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	results, err := d.search(ctx, query)

	d.mu.Lock()
	stale := d.disposed || d.seq != target
	d.mu.Unlock()
	if stale {
		return
	}
	d.deliver(query, results, err)
}

// Dispose cancels any pending search and drops interest in in-flight
// responses. Idempotent.
func (d *Debouncer) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
