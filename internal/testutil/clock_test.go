package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_FrozenUntilAdvanced(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestSequentialIDs_Predictable(t *testing.T) {
	gen := NewSequentialIDs()

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", gen.Generate())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs()

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(gen.Generate(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
}
