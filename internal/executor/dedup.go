package executor

import (
	"sync"
	"time"
)

// Dedup remembers transaction hashes for a TTL window so a fill that shows
// up twice (poller overlap, WebSocket redelivery) is mirrored only once. It
// is safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewDedup creates a Dedup with the given TTL window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether the hash was recorded within the TTL window, and
// records it if not.
func (d *Dedup) Seen(txHash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[txHash]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[txHash] = now
	return false
}

// Prune drops entries older than the TTL to bound memory.
func (d *Dedup) Prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for h, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, h)
		}
	}
}
