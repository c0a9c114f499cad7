package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		seen := make([]int32, n)
		Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "item %d", i)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestMapOrderIndependentOfDegree(t *testing.T) {
	const n = 50
	for _, degree := range []int{1, 3, 0} {
		out := make([]int, n)
		err := Map(context.Background(), "square", n, degree, func(_ context.Context, i int) error {
			out[i] = i * i
			return nil
		})
		require.NoError(t, err)
		for i := range out {
			assert.Equal(t, i*i, out[i])
		}
	}
}

func TestMapReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Map(context.Background(), "fail", 20, 2, func(_ context.Context, i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestMapRecoversPanics(t *testing.T) {
	err := Map(context.Background(), "RandomBag.member", 4, 2, func(_ context.Context, i int) error {
		if i == 2 {
			panic("learner panicked")
		}
		return nil
	})
	require.Error(t, err)

	var panicErr *scigoErrors.PanicError
	require.True(t, scigoErrors.As(err, &panicErr))
	assert.Equal(t, "RandomBag.member", panicErr.Operation)
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := Map(ctx, "noop", 10, 2, func(_ context.Context, _ int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDegree(t *testing.T) {
	assert.Equal(t, 4, Degree(4))
	assert.Positive(t, Degree(0))
	assert.Positive(t, Degree(-1))
}
