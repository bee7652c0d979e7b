package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupSeen(t *testing.T) {
	d := NewDedup(time.Minute)

	assert.False(t, d.Seen("0xabc"), "first sighting is not a duplicate")
	assert.True(t, d.Seen("0xabc"))
	assert.False(t, d.Seen("0xdef"))
}

func TestDedupExpiry(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)

	assert.False(t, d.Seen("0xabc"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.Seen("0xabc"), "expired entries are forgotten")
}

func TestDedupPrune(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	d.Seen("0xabc")
	d.Seen("0xdef")

	time.Sleep(20 * time.Millisecond)
	d.Prune()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.seen)
}
