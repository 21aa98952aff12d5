// ABOUTME: Tests for the seen-message cache
// ABOUTME: Covers duplicate detection, TTL expiry, and size eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Seen_DetectsDuplicates(t *testing.T) {
	c := New(time.Minute, 100)

	assert.False(t, c.Seen("email", "msg-1"))
	assert.True(t, c.Seen("email", "msg-1"))

	// Same id on a different channel is a different delivery.
	assert.False(t, c.Seen("chat", "msg-1"))
}

func TestCache_Seen_ExpiredEntryIsFresh(t *testing.T) {
	c := New(time.Nanosecond, 100)

	assert.False(t, c.Seen("email", "msg-1"))
	time.Sleep(time.Millisecond)
	assert.False(t, c.Seen("email", "msg-1"))
}

func TestCache_Seen_EvictsOldestHalfWhenFull(t *testing.T) {
	c := New(time.Minute, 4)
	for i := 0; i < 4; i++ {
		c.Seen("chat", fmt.Sprintf("m%d", i))
	}

	// The fifth entry evicts the oldest two.
	c.Seen("chat", "m4")
	assert.True(t, c.Seen("chat", "m2"), "m2 should have survived eviction")
	assert.True(t, c.Seen("chat", "m3"), "m3 should have survived eviction")
	assert.False(t, c.Seen("chat", "m0"), "m0 should have been evicted")
}

func TestCache_Prune_RemovesExpired(t *testing.T) {
	c := New(time.Nanosecond, 100)
	c.Seen("email", "m1")
	c.Seen("email", "m2")
	time.Sleep(time.Millisecond)

	c.Prune()
	assert.Equal(t, 0, c.Len())
}
