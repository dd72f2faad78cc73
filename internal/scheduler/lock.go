package scheduler

import (
	"sync"
	"time"

	"github.com/clinrota/clinrota-api/internal/models"
)

// rangeLockTable provides non-blocking mutual exclusion over date ranges.
// Acquisition fails immediately when any held range overlaps the requested
// one; overlapping in-flight generation is rejected, never queued. Locks are
// released through the returned closure, so a run that panics or times out
// under a deferred release cannot leave a stale entry.
type rangeLockTable struct {
	mu   sync.Mutex
	held map[int64]dateRange
	next int64
}

type dateRange struct {
	start time.Time
	end   time.Time
}

func (r dateRange) overlaps(other dateRange) bool {
	return !r.start.After(other.end) && !other.start.After(r.end)
}

func newRangeLockTable() *rangeLockTable {
	return &rangeLockTable{held: make(map[int64]dateRange)}
}

// TryAcquire claims the inclusive date range. The boolean reports success;
// on success the caller must invoke the release closure exactly once.
func (t *rangeLockTable) TryAcquire(start, end time.Time) (func(), bool) {
	want := dateRange{start: models.DateOnly(start), end: models.DateOnly(end)}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, held := range t.held {
		if held.overlaps(want) {
			return nil, false
		}
	}
	t.next++
	id := t.next
	t.held[id] = want

	var once sync.Once
	release := func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.held, id)
			t.mu.Unlock()
		})
	}
	return release, true
}
