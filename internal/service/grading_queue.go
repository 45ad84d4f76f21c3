package service

import (
	"context"
	"sync"

	"quizpath_backend/pkg/logger"
	"quizpath_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// GradingTask is one deferred unit of grading work, produced by submit or
// regrade and consumed by the queue worker.
type GradingTask struct {
	AttemptID  string
	Generation uint
}

// GradingQueue serializes AI grading passes through a single background
// worker. Requests never block on the judge: they enqueue at most one task
// and return.
type GradingQueue struct {
	tasks  chan GradingTask
	run    func(ctx context.Context, task GradingTask)
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

func NewGradingQueue(size int, run func(ctx context.Context, task GradingTask)) *GradingQueue {
	if size <= 0 {
		size = 256
	}
	return &GradingQueue{
		tasks: make(chan GradingTask, size),
		run:   run,
	}
}

// Start launches the worker goroutine. Tasks enqueued before Start sit in the
// channel until it runs.
func (q *GradingQueue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.wg.Add(1)
	go q.worker(ctx)
}

// Stop prevents further dequeues and waits for the in-flight task to finish.
func (q *GradingQueue) Stop() {
	q.once.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		close(q.tasks)
		q.wg.Wait()
	})
}

// Enqueue queues a grading task. It reports false when the queue is full or
// stopped; the attempt then stays in its grading state until a manual regrade.
func (q *GradingQueue) Enqueue(task GradingTask) bool {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Warn("grading task dropped, queue stopped",
				zap.String("attemptId", task.AttemptID))
		}
	}()
	select {
	case q.tasks <- task:
		monitoring.GradingQueueDepth.Inc()
		return true
	default:
		logger.Log.Warn("grading queue full, task dropped",
			zap.String("attemptId", task.AttemptID))
		monitoring.GradingTasksTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

func (q *GradingQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			monitoring.GradingQueueDepth.Dec()
			q.run(ctx, task)
		}
	}
}
