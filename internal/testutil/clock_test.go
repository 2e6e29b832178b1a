package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_DefaultStart(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	start := clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(100*time.Second), clock.Now())
}

func TestSequenceKeyGenerator(t *testing.T) {
	gen := NewSequenceKeyGenerator("graph")
	assert.Equal(t, "graph-1", gen.Generate())
	assert.Equal(t, "graph-2", gen.Generate())

	assert.Equal(t, "key-1", NewSequenceKeyGenerator("").Generate())
}

func TestShop(t *testing.T) {
	reg := Shop(t)
	assert.Equal(t, []string{"categories", "orders", "products", "refunds", "tags"}, reg.Names())
}
