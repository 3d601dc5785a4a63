package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/queue"
	"github.com/dmitrymomot/queuekit/pkg/queue/queuetest"
)

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	queuetest.RunStoreSuite(t, func(t *testing.T, clock *queuetest.Clock) queue.Store {
		return queue.NewMemoryStorage(queue.WithMemoryClock(clock.Now))
	})
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := queue.NewMemoryStorage()
	id, err := ms.Add(ctx, "copy", queue.Payload{"k": "v"})
	require.NoError(t, err)

	rec, err := ms.Find(ctx, id)
	require.NoError(t, err)
	rec.Status = queue.StatusFailed
	rec.Payload[0] = 'x'

	again, err := ms.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, again.Status)
	assert.JSONEq(t, `{"k":"v"}`, string(again.Payload))
}

func TestMemoryStorage_ConcurrentAdd(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	const n = 50

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := ms.Add(context.Background(), "parallel", nil)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
	assert.Equal(t, n, ms.Len())
}
