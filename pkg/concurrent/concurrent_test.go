package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachRunsEveryItemAndJoinsErrors(t *testing.T) {
	errOdd := errors.New("odd")
	var ran atomic.Int32
	var inFlight, peak atomic.Int32

	err := ForEach(context.Background(), []int{1, 2, 3, 4, 5, 6}, 2, func(_ context.Context, v int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		ran.Add(1)
		if v%2 == 1 {
			return errOdd
		}
		return nil
	})

	require.ErrorIs(t, err, errOdd)
	assert.Equal(t, int32(6), ran.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestForEachCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := ForEach(ctx, []int{1}, 1, func(context.Context, int) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestParallelMapKeepsOrder(t *testing.T) {
	out := ParallelMap([]int{1, 2, 3, 4}, 3, func(v int) int { return v * v })
	assert.Equal(t, []int{1, 4, 9, 16}, out)
}

func TestBatchCoversAllElements(t *testing.T) {
	var sum atomic.Int64
	Batch([]int{1, 2, 3, 4, 5}, 2, func(chunk []int) {
		for _, v := range chunk {
			sum.Add(int64(v))
		}
	})
	assert.Equal(t, int64(15), sum.Load())
}
