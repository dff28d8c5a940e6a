// ABOUTME: Tests for the Slack event dedupe cache.
// ABOUTME: Validates TTL expiration, capacity eviction, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_Seen_FirstDelivery(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.Seen("Ev001"))
}

func TestCache_Seen_RetriedDelivery(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.Seen("Ev001"))
	assert.True(t, cache.Seen("Ev001"))
	assert.True(t, cache.Seen("Ev001"))
}

func TestCache_Seen_DistinctEvents(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.Seen("Ev001"))
	assert.False(t, cache.Seen("Ev002"))
	assert.False(t, cache.Seen("Ev003"))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Seen_ExpiredEventReprocessed(t *testing.T) {
	cache := New(10*time.Millisecond, 100)

	assert.False(t, cache.Seen("Ev001"))

	// Wait for the TTL to lapse
	time.Sleep(20 * time.Millisecond)

	assert.False(t, cache.Seen("Ev001"))
}

func TestCache_Seen_CapacityEvictsOldest(t *testing.T) {
	cache := New(5*time.Minute, 2)

	assert.False(t, cache.Seen("Ev001"))
	assert.False(t, cache.Seen("Ev002"))
	assert.False(t, cache.Seen("Ev003"))

	// Ev001 was evicted to make room, so it reads as new again
	assert.False(t, cache.Seen("Ev001"))
	// Ev003 is still fresh
	assert.True(t, cache.Seen("Ev003"))
}

func TestCache_Len_ExcludesExpired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)

	cache.Seen("Ev001")
	cache.Seen("Ev002")
	assert.Equal(t, 2, cache.Len())

	time.Sleep(20 * time.Millisecond)

	// Pruning happens on the next call that takes the lock
	cache.Seen("Ev003")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Seen_ConcurrentSameEvent(t *testing.T) {
	cache := New(5*time.Minute, 100)

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.Seen("Ev-race") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly one caller observes the event as new
	assert.Equal(t, int32(1), firsts.Load())
}

func TestCache_Seen_ConcurrentDistinctEvents(t *testing.T) {
	cache := New(5*time.Minute, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("Ev%03d", n)
			assert.False(t, cache.Seen(id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}
