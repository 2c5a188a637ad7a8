package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SortsAndBounds(t *testing.T) {
	keys := []int{5, 3, 9, 1, 7, 2, 8}
	var inFlight, peak int32
	out, err := Map(context.Background(), 2, keys, func(_ context.Context, k int) ([]int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)
		if k%3 == 0 {
			return nil, nil
		}
		return []int{k * 10}, nil
	}, func(a, b int) bool { return a < b })

	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 50, 70, 80}, out)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestMap_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map(context.Background(), 4, []string{"a", "b"}, func(_ context.Context, k string) ([]string, error) {
		if k == "b" {
			return nil, boom
		}
		return []string{k}, nil
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Map(ctx, 1, []int{1, 2, 3}, func(ctx context.Context, k int) ([]int, error) {
		return []int{k}, nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}
