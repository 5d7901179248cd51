package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceIDs_StartsAtZero(t *testing.T) {
	ids := NewSequenceIDs()
	assert.Equal(t, int64(0), ids.Current())
}

func TestSequenceIDs_NextIncrementsMonotonically(t *testing.T) {
	ids := NewSequenceIDs()

	assert.Equal(t, int64(1), ids.Next())
	assert.Equal(t, int64(1), ids.Current())

	assert.Equal(t, int64(2), ids.Next())
	assert.Equal(t, int64(3), ids.Next())
	assert.Equal(t, int64(3), ids.Current())
}

func TestSequenceIDs_Reset(t *testing.T) {
	ids := NewSequenceIDs()
	ids.Next()
	ids.Next()
	assert.Equal(t, int64(2), ids.Current())

	ids.Reset()
	assert.Equal(t, int64(0), ids.Current())
	assert.Equal(t, int64(1), ids.Next())
}

func TestSequenceIDs_ThreadSafe(t *testing.T) {
	ids := NewSequenceIDs()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]int64, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]int64, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = ids.Next()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, row := range results {
		for _, v := range row {
			require.False(t, seen[v], "duplicate id %d", v)
			seen[v] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), ids.Current())
}
