package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

func TestInMemoryQueue_FIFOOrder(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, models.Event{Topic: "t", EventID: string(rune('a' + i))}))
	}

	for i := 0; i < 3; i++ {
		entry, ok, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, string(rune('a'+i)), entry.Event.EventID)
	}
}

func TestInMemoryQueue_DequeueTimesOutWhenEmpty(t *testing.T) {
	q := NewInMemoryQueue()
	_, ok, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInMemoryQueue_SizeReflectsDepth(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, models.Event{Topic: "t", EventID: "1"}))
	require.NoError(t, q.Enqueue(ctx, models.Event{Topic: "t", EventID: "2"}))

	size, err := q.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, size)

	_, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	size, err = q.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func TestInMemoryQueue_CloseUnblocksWaiters(t *testing.T) {
	q := NewInMemoryQueue()

	done := make(chan struct{})
	go func() {
		_, ok, err := q.Dequeue(context.Background(), 5*time.Second)
		require.NoError(t, err)
		require.False(t, ok)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Close")
	}
}
