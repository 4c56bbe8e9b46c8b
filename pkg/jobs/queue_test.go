package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRoutesJobsByType(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]string)

	q := NewQueue("test", QueueConfig{Workers: 2})
	for _, jobType := range []string{"a", "b"} {
		jobType := jobType
		q.Handle(jobType, func(_ context.Context, job Job) error {
			mu.Lock()
			defer mu.Unlock()
			seen[jobType] = append(seen[jobType], job.ID)
			return nil
		})
	}
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "b"}))
	require.NoError(t, q.Enqueue(Job{ID: "3", Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"1", "3"}, seen["a"])
	assert.Equal(t, []string{"2"}, seen["b"])
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts int32
	var finalErr error
	var mu sync.Mutex

	q := NewQueue("retry", QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnComplete: func(_ Job, err error) {
			mu.Lock()
			finalErr = err
			mu.Unlock()
		},
	})
	q.Handle("flaky", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("upstream down")
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "x", Type: "flaky"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	assert.EqualError(t, finalErr, "upstream down")
}

func TestQueueUnknownTypeCompletesWithError(t *testing.T) {
	var got error
	q := NewQueue("unknown", QueueConfig{OnComplete: func(_ Job, err error) { got = err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "y", Type: "missing"}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.ErrorContains(t, got, "no handler registered")
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", QueueConfig{})
	err := q.Enqueue(Job{ID: "z", Type: "a"})
	assert.ErrorContains(t, err, "not started")
	require.NoError(t, q.Wait(context.Background()))
}
