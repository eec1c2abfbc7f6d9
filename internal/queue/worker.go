package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"applyflow/internal/config"
	"applyflow/internal/logging"
)

// Handler processes one task type.
type Handler func(ctx context.Context, task *Task) error

// WorkerPool consumes the queue with a fixed set of worker goroutines.
// LLM-bound task types share a rate limiter so concurrent workers stay under
// the provider's request budget.
type WorkerPool struct {
	config      *config.Config
	queue       *Queue
	handlers    map[string]Handler
	rateLimited map[string]bool
	limiter     *rate.Limiter
	logger      logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stats PoolStats
}

// PoolStats tracks worker pool counters.
type PoolStats struct {
	mu             sync.RWMutex
	TasksHandled   int64
	TasksSucceeded int64
	TasksRetried   int64
	TasksFailed    int64
}

// NewWorkerPool creates a worker pool over the queue.
func NewWorkerPool(cfg *config.Config, q *Queue) *WorkerPool {
	perSecond := rate.Limit(float64(cfg.LLM.RateLimit) / 60.0)
	return &WorkerPool{
		config:      cfg,
		queue:       q,
		handlers:    make(map[string]Handler),
		rateLimited: make(map[string]bool),
		limiter:     rate.NewLimiter(perSecond, 1),
		logger:      logging.GetGlobalLogger(),
	}
}

// Register binds a handler to a task type. rateLimited marks LLM-bound types
// that must wait on the shared limiter before executing.
func (wp *WorkerPool) Register(taskType string, handler Handler, rateLimited bool) {
	wp.handlers[taskType] = handler
	wp.rateLimited[taskType] = rateLimited
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return fmt.Errorf("worker pool is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp.cancel = cancel
	wp.running = true

	// Tasks stranded mid-flight by a previous run go back to their ready
	// lists before any worker claims new work.
	if err := wp.queue.ReapProcessing(ctx); err != nil {
		wp.logger.Error("Failed to reap stranded tasks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for i := 1; i <= wp.config.Workers.PoolSize; i++ {
		wp.wg.Add(1)
		go wp.run(ctx, i)
	}

	wp.logger.Info("Worker pool started", map[string]interface{}{
		"pool_size": wp.config.Workers.PoolSize,
	})
	return nil
}

// Stop signals workers to finish their current task and waits for them.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.running {
		return nil
	}

	wp.logger.Info("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
	wp.running = false
	wp.logger.Info("Worker pool stopped")
	return nil
}

// IsRunning reports whether the pool is consuming tasks.
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.running
}

// GetStats returns a snapshot of pool counters.
func (wp *WorkerPool) GetStats() (handled, succeeded, retried, failed int64) {
	wp.stats.mu.RLock()
	defer wp.stats.mu.RUnlock()
	return wp.stats.TasksHandled, wp.stats.TasksSucceeded, wp.stats.TasksRetried, wp.stats.TasksFailed
}

func (wp *WorkerPool) run(ctx context.Context, workerID int) {
	defer wp.wg.Done()

	processingKey := fmt.Sprintf("%s%d", processingKeyPrefix, workerID)
	wp.logger.Debug("Worker started", map[string]interface{}{
		"worker_id": workerID,
	})

	for {
		select {
		case <-ctx.Done():
			wp.logger.Debug("Worker stopping", map[string]interface{}{
				"worker_id": workerID,
			})
			return
		default:
		}

		task, err := wp.queue.Dequeue(ctx, processingKey)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wp.logger.Error("Dequeue failed", map[string]interface{}{
				"worker_id": workerID,
				"error":     err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		wp.process(ctx, workerID, task)
	}
}

func (wp *WorkerPool) process(ctx context.Context, workerID int, task *Task) {
	start := time.Now()

	wp.stats.mu.Lock()
	wp.stats.TasksHandled++
	wp.stats.mu.Unlock()

	handler, ok := wp.handlers[task.Type]
	if !ok {
		wp.logger.Error("No handler registered for task type", map[string]interface{}{
			"task_id": task.ID,
			"type":    task.Type,
		})
		_, _ = wp.queue.Retry(ctx, task, fmt.Errorf("no handler for task type %s", task.Type))
		return
	}

	if wp.rateLimited[task.Type] {
		if err := wp.limiter.Wait(ctx); err != nil {
			// Shutdown while waiting; push the task back for the next run.
			_, _ = wp.queue.Retry(context.Background(), task, err)
			return
		}
	}

	err := handler(ctx, task)
	duration := time.Since(start)

	if err != nil {
		rescheduled, retryErr := wp.queue.Retry(ctx, task, err)
		if retryErr != nil {
			wp.logger.Error("Failed to reschedule task", map[string]interface{}{
				"task_id": task.ID,
				"error":   retryErr.Error(),
			})
		}

		wp.stats.mu.Lock()
		if rescheduled {
			wp.stats.TasksRetried++
		} else {
			wp.stats.TasksFailed++
		}
		wp.stats.mu.Unlock()
		return
	}

	if err := wp.queue.Complete(ctx, task); err != nil {
		wp.logger.Warn("Failed to record task completion", map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}

	wp.stats.mu.Lock()
	wp.stats.TasksSucceeded++
	wp.stats.mu.Unlock()

	wp.logger.Debug("Task completed", map[string]interface{}{
		"task_id":   task.ID,
		"type":      task.Type,
		"worker_id": workerID,
		"duration":  duration.String(),
		"attempt":   task.Attempts,
	})
}
