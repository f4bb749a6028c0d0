package scheduler

import (
	"sync"
	"time"
)

// dedup drops repeat firings of the same trigger within a TTL window. It is
// the in-process half of the concurrency guard; the optional distributed
// lock covers multi-instance deployments.
type dedup struct {
	seen map[string]time.Time
	ttl  time.Duration
	mu   sync.Mutex

	now func() time.Time
}

func newDedup(ttl time.Duration) *dedup {
	return &dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// isDuplicate reports whether id fired within the TTL window. A miss records
// the firing.
func (d *dedup) isDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[id]; ok && now.Sub(last) < d.ttl {
		return true
	}

	// Expired entries are overwritten here; with two fixed triggers per day
	// the map never needs a sweep.
	d.seen[id] = now
	return false
}
