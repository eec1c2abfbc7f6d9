// Package queue implements a durable redis-backed work queue with
// at-least-once delivery. Ready tasks sit in per-priority lists; delayed and
// retrying tasks wait in a sorted set scored by their ready time. A dequeue
// moves the task into a per-worker processing list where it stays until the
// worker acknowledges it, so a crash mid-task leaves the entry recoverable.
// Terminal outcomes are retained under TTL'd result keys.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"applyflow/internal/config"
	"applyflow/internal/logging"
)

// Task types routed through the queue.
const (
	TaskApplicationSubmit = "application.submit"
	TaskScoreCompute      = "score.compute"
	TaskDigestFlush       = "digest.flush"
)

// Priority selects which ready list a task lands in.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

const (
	delayedKey          = "queue:delayed"
	readyKeyPrefix      = "queue:ready:"
	resultKeyPrefix     = "queue:result:"
	processingKeyPrefix = "queue:processing:"
)

// readyKeys is the BLPOP ordering; earlier keys drain first.
var readyKeys = []string{
	readyKeyPrefix + string(PriorityHigh),
	readyKeyPrefix + string(PriorityDefault),
	readyKeyPrefix + string(PriorityLow),
}

// Task is one unit of work. Attempts counts deliveries so far.
type Task struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    Priority        `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`

	// Set on dequeue so the terminal ack can remove the exact entry from the
	// worker's processing list.
	raw           string
	processingKey string
}

// TaskResult is the retained terminal record of a task.
type TaskResult struct {
	TaskID      string    `json:"task_id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completed_at"`
}

// Queue is the redis-backed task queue.
type Queue struct {
	client *redis.Client
	config *config.Config
	logger logging.Logger
}

// NewQueue constructs a Queue on an existing redis client.
func NewQueue(client *redis.Client, cfg *config.Config) *Queue {
	return &Queue{
		client: client,
		config: cfg,
		logger: logging.GetGlobalLogger(),
	}
}

// Enqueue pushes a task onto its ready list, or into the delayed set when a
// delay is given. The payload is marshaled to JSON.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload interface{}, priority Priority, delay time.Duration) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}

	task := &Task{
		ID:          uuid.New().String(),
		Type:        taskType,
		Payload:     data,
		Priority:    priority,
		Attempts:    0,
		MaxAttempts: q.config.Workers.MaxAttempts,
		EnqueuedAt:  time.Now(),
	}

	if err := q.push(ctx, task, delay); err != nil {
		return "", err
	}

	q.logger.Debug("Task enqueued", map[string]interface{}{
		"task_id":  task.ID,
		"type":     task.Type,
		"priority": string(priority),
		"delay":    delay.String(),
	})
	return task.ID, nil
}

func (q *Queue) push(ctx context.Context, task *Task, delay time.Duration) error {
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if delay > 0 {
		score := float64(time.Now().Add(delay).UnixMilli())
		if err := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: score, Member: encoded}).Err(); err != nil {
			return fmt.Errorf("enqueue delayed task: %w", err)
		}
		return nil
	}

	if err := q.client.RPush(ctx, readyKeyFor(task.Priority), encoded).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// readyKeyFor maps a priority to its ready list.
func readyKeyFor(priority Priority) string {
	return readyKeyPrefix + string(priority)
}

// Dequeue promotes due delayed tasks, then moves the next ready task into the
// caller's processing list, draining higher-priority lists first. The task
// stays in the processing list until Complete or Retry acknowledges it, so a
// crash between dequeue and ack leaves it recoverable by ReapProcessing. An
// idle worker blocks on the high-priority list for the poll timeout; lower
// lists are drained on each pass. A nil task with nil error means the poll
// came up empty.
func (q *Queue) Dequeue(ctx context.Context, processingKey string) (*Task, error) {
	if err := q.promoteDue(ctx); err != nil {
		q.logger.Warn("Failed to promote delayed tasks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for _, key := range readyKeys {
		raw, err := q.client.LMove(ctx, key, processingKey, "LEFT", "RIGHT").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dequeue task: %w", err)
		}
		return q.claim(raw, processingKey)
	}

	raw, err := q.client.BLMove(ctx, readyKeys[0], processingKey, "LEFT", "RIGHT", q.config.Workers.PollTimeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	return q.claim(raw, processingKey)
}

// claim decodes a moved entry and counts the delivery.
func (q *Queue) claim(raw, processingKey string) (*Task, error) {
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	task.Attempts++
	task.raw = raw
	task.processingKey = processingKey
	return &task, nil
}

// ack removes the claimed entry from the worker's processing list. Called
// only after the retry or result record is durable.
func (q *Queue) ack(ctx context.Context, task *Task) {
	if task.raw == "" || task.processingKey == "" {
		return
	}
	if err := q.client.LRem(ctx, task.processingKey, 1, task.raw).Err(); err != nil {
		q.logger.Warn("Failed to remove task from processing list", map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}
}

// ReapProcessing returns tasks stranded in processing lists by a previous
// crashed run to their ready lists. Called once before workers start.
func (q *Queue) ReapProcessing(ctx context.Context) error {
	var cursor uint64
	reaped := 0
	for {
		keys, next, err := q.client.Scan(ctx, cursor, processingKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan processing lists: %w", err)
		}

		for _, key := range keys {
			entries, err := q.client.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return fmt.Errorf("read processing list: %w", err)
			}
			for _, raw := range entries {
				var task Task
				if err := json.Unmarshal([]byte(raw), &task); err != nil {
					q.logger.Error("Dropping undecodable stranded task", map[string]interface{}{
						"error": err.Error(),
					})
					continue
				}
				if err := q.client.RPush(ctx, readyKeyFor(task.Priority), raw).Err(); err != nil {
					return fmt.Errorf("requeue stranded task: %w", err)
				}
				reaped++
			}
			if err := q.client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("clear processing list: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if reaped > 0 {
		q.logger.Warn("Requeued tasks stranded by a previous run", map[string]interface{}{
			"count": reaped,
		})
	}
	return nil
}

// promoteDue moves delayed tasks whose ready time has passed onto their ready
// lists.
func (q *Queue) promoteDue(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return err
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			// Another worker promoted it first.
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			q.logger.Error("Dropping undecodable delayed task", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if err := q.client.RPush(ctx, readyKeyFor(task.Priority), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Retry reschedules a failed task with exponential backoff, or records a
// terminal failure once attempts are exhausted. Returns true when the task
// was rescheduled.
func (q *Queue) Retry(ctx context.Context, task *Task, taskErr error) (bool, error) {
	if task.Attempts >= task.MaxAttempts {
		if err := q.recordResult(ctx, task, "failed", taskErr); err != nil {
			return false, err
		}
		q.ack(ctx, task)
		q.logger.Error("Task failed permanently", map[string]interface{}{
			"task_id":  task.ID,
			"type":     task.Type,
			"attempts": task.Attempts,
			"error":    taskErr.Error(),
		})
		return false, nil
	}

	backoff := q.backoffFor(task.Attempts)
	if err := q.push(ctx, task, backoff); err != nil {
		return false, err
	}
	q.ack(ctx, task)

	q.logger.Warn("Task rescheduled", map[string]interface{}{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
		"backoff": backoff.String(),
		"error":   taskErr.Error(),
	})
	return true, nil
}

// backoffFor doubles the base delay per completed attempt.
func (q *Queue) backoffFor(attempts int) time.Duration {
	backoff := q.config.Workers.BaseBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
	}
	return backoff
}

// Complete records a successful terminal outcome.
func (q *Queue) Complete(ctx context.Context, task *Task) error {
	if err := q.recordResult(ctx, task, "completed", nil); err != nil {
		return err
	}
	q.ack(ctx, task)
	return nil
}

func (q *Queue) recordResult(ctx context.Context, task *Task, status string, taskErr error) error {
	result := &TaskResult{
		TaskID:      task.ID,
		Type:        task.Type,
		Status:      status,
		Attempts:    task.Attempts,
		CompletedAt: time.Now(),
	}
	if taskErr != nil {
		result.Error = taskErr.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}

	if err := q.client.Set(ctx, resultKeyPrefix+task.ID, data, q.config.Workers.Retention).Err(); err != nil {
		return fmt.Errorf("record task result: %w", err)
	}
	return nil
}

// GetResult fetches the retained terminal record of a task, if still within
// the retention window.
func (q *Queue) GetResult(ctx context.Context, taskID string) (*TaskResult, error) {
	data, err := q.client.Get(ctx, resultKeyPrefix+taskID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get task result: %w", err)
	}

	var result TaskResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("unmarshal task result: %w", err)
	}
	return &result, nil
}

// Depth reports the current ready-list and delayed-set sizes for health
// reporting.
func (q *Queue) Depth(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, len(readyKeys)+1)
	for _, key := range readyKeys {
		n, err := q.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("queue depth: %w", err)
		}
		depths[key] = n
	}

	delayed, err := q.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("delayed depth: %w", err)
	}
	depths[delayedKey] = delayed
	return depths, nil
}
