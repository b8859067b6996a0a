package socket

import (
	"sync"

	"shipline/internal/models"
)

// Dedup filters notification events on their canonical time key so the same
// logical event is delivered at most once per hub. The seen set is bounded;
// oldest keys fall out first.
type Dedup struct {
	mu    sync.Mutex
	seen  map[int64]struct{}
	order []int64
	limit int
}

const defaultDedupLimit = 1024

func NewDedup(limit int) *Dedup {
	if limit <= 0 {
		limit = defaultDedupLimit
	}
	return &Dedup{
		seen:  make(map[int64]struct{}),
		limit: limit,
	}
}

// Accept records t and reports whether it was unseen. A repeated key returns
// false and leaves the set unchanged.
func (d *Dedup) Accept(t models.Millis) bool {
	key := int64(t)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	if len(d.order) > d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return true
}

// Len returns the number of retained keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
