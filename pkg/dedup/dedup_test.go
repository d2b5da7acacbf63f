package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen(t *testing.T) {
	d := New(time.Minute, 100)
	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	d := New(time.Minute, 100)
	d.now = func() time.Time { return now }

	assert.False(t, d.Seen("a"))
	now = now.Add(30 * time.Second)
	assert.True(t, d.Seen("a"))
	now = now.Add(31 * time.Second)
	assert.False(t, d.Seen("a"), "entry should have expired")
}

func TestEmptyKeyNeverDeduped(t *testing.T) {
	d := New(time.Minute, 100)
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
}
