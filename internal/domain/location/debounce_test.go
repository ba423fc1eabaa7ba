package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type debounceFixture struct {
	mu        sync.Mutex
	fns       []func()
	searches  []string
	delivered []string
	failures  int
}

func (f *debounceFixture) afterFunc(_ time.Duration, fn func()) *time.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (f *debounceFixture) search(_ context.Context, query string) ([]Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	return []Location{{Place: Place{Name: query}}}, nil
}

func (f *debounceFixture) deliver(query string, _ []Location, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failures++
		return
	}
	f.delivered = append(f.delivered, query)
}

func (f *debounceFixture) fire(t *testing.T, i int) {
	f.mu.Lock()
	require.Less(t, i, len(f.fns))
	fn := f.fns[i]
	f.mu.Unlock()
	fn()
}

func newDebounceFixture() (*Debouncer, *debounceFixture) {
	f := &debounceFixture{}
	d := NewDebouncer(300*time.Millisecond, f.search, f.deliver)
	d.afterFunc = f.afterFunc
	return d, f
}

func TestDebouncerOnlyLatestQueryFires(t *testing.T) {
	d, f := newDebounceFixture()
	ctx := context.Background()

	d.Query(ctx, "li")
	d.Query(ctx, "lis")
	d.Query(ctx, "lisbon")

	// Superseded windows are dead even if their timers somehow fire.
	f.fire(t, 0)
	f.fire(t, 1)
	f.fire(t, 2)

	require.Equal(t, []string{"lisbon"}, f.searches)
	require.Equal(t, []string{"lisbon"}, f.delivered)
}

func TestDebouncerEmptyQueryCancels(t *testing.T) {
	d, f := newDebounceFixture()
	ctx := context.Background()

	d.Query(ctx, "lisbon")
	d.Query(ctx, "")

	f.fire(t, 0)
	require.Empty(t, f.searches)
	require.Empty(t, f.delivered)
}

func TestDebouncerDiscardsOutdatedResponse(t *testing.T) {
	f := &debounceFixture{}
	var d *Debouncer
	// The search for the first query supersedes itself mid-flight, as a
	// slow response would when the user keeps typing.
	slowSearch := func(ctx context.Context, query string) ([]Location, error) {
		if query == "li" {
			d.Query(ctx, "lisbon")
		}
		return f.search(ctx, query)
	}
	d = NewDebouncer(300*time.Millisecond, slowSearch, f.deliver)
	d.afterFunc = f.afterFunc

	d.Query(context.Background(), "li")
	f.fire(t, 0)

	require.Equal(t, []string{"li"}, f.searches)
	require.Empty(t, f.delivered)

	f.fire(t, 1)
	require.Equal(t, []string{"li", "lisbon"}, f.searches)
	require.Equal(t, []string{"lisbon"}, f.delivered)
}

func TestDebouncerDisposeDropsPendingWork(t *testing.T) {
	d, f := newDebounceFixture()
	ctx := context.Background()

	d.Query(ctx, "lisbon")
	d.Dispose()
	d.Dispose()

	f.fire(t, 0)
	require.Empty(t, f.searches)

	d.Query(ctx, "porto")
	f.mu.Lock()
	pending := len(f.fns)
	f.mu.Unlock()
	require.Equal(t, 1, pending)
}
