// Package dedup suppresses QoS 1 redeliveries. A redelivered telemetry
// message carries the same payload, so callers key on a payload hash.
package dedup

import (
	"sync"
	"time"
)

// Deduper remembers recently seen keys for a TTL window, with a hard cap
// on table size.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time

	now func() time.Time // test hook
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max), now: time.Now}
}

// Seen records key and reports whether it was already present and
// unexpired. The empty key is never deduplicated.
func (d *Deduper) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return true
	}
	d.seen[key] = now.Add(d.ttl)

	if len(d.seen) > d.max {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
			if len(d.seen) <= d.max {
				break
			}
		}
	}
	return false
}
