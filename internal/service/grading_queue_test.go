package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradingQueueRunsTasksInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 2)

	q := NewGradingQueue(8, func(ctx context.Context, task GradingTask) {
		mu.Lock()
		got = append(got, task.AttemptID)
		mu.Unlock()
		done <- struct{}{}
	})
	q.Start()
	defer q.Stop()

	require.True(t, q.Enqueue(GradingTask{AttemptID: "first", Generation: 1}))
	require.True(t, q.Enqueue(GradingTask{AttemptID: "second", Generation: 1}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not run the task")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestGradingQueueDropsWhenFull(t *testing.T) {
	q := NewGradingQueue(1, func(ctx context.Context, task GradingTask) {})
	// worker not started, so the buffer fills

	assert.True(t, q.Enqueue(GradingTask{AttemptID: "a"}))
	assert.False(t, q.Enqueue(GradingTask{AttemptID: "b"}))
}

func TestGradingQueueStopWaitsForInFlightTask(t *testing.T) {
	started := make(chan struct{})
	finished := false

	q := NewGradingQueue(1, func(ctx context.Context, task GradingTask) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished = true
	})
	q.Start()

	require.True(t, q.Enqueue(GradingTask{AttemptID: "slow"}))
	<-started
	q.Stop()

	assert.True(t, finished, "Stop returns only after the running task completes")
}
