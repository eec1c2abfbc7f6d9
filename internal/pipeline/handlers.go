package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"applyflow/internal/digest"
	"applyflow/internal/queue"
	"applyflow/internal/scoring"
	"applyflow/pkg/utils"
)

// SubmitPayload is the application.submit task body.
type SubmitPayload struct {
	OwnerID        string `json:"owner_id"`
	PostingID      string `json:"posting_id"`
	ProfileText    string `json:"profile_text"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// RegisterTaskHandlers binds the pipeline's task types to the worker pool.
// score.compute is rate limited because it calls the AI provider.
func RegisterTaskHandlers(wp *queue.WorkerPool, dispatcher *Dispatcher, engine *scoring.Engine, postings PostingReader, batcher *digest.Batcher) {
	wp.Register(queue.TaskApplicationSubmit, submitHandler(dispatcher), false)
	wp.Register(queue.TaskScoreCompute, scoreHandler(engine, postings), true)
	wp.Register(queue.TaskDigestFlush, flushHandler(batcher), false)
}

// submitHandler dispatches a queued submission. A duplicate application means
// an earlier delivery already succeeded, so it counts as done.
func submitHandler(dispatcher *Dispatcher) queue.Handler {
	return func(ctx context.Context, task *queue.Task) error {
		var payload SubmitPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("decode submit payload: %w", err)
		}

		_, err := dispatcher.Submit(ctx, &SubmitRequest{
			OwnerID:        payload.OwnerID,
			PostingID:      payload.PostingID,
			ProfileText:    payload.ProfileText,
			SubscriptionID: payload.SubscriptionID,
		})
		if err != nil && !errors.Is(err, utils.ErrDuplicateApplication) {
			return err
		}
		return nil
	}
}

func scoreHandler(engine *scoring.Engine, postings PostingReader) queue.Handler {
	return func(ctx context.Context, task *queue.Task) error {
		var payload ScorePayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("decode score payload: %w", err)
		}

		posting, err := postings.GetByID(ctx, payload.PostingID)
		if err != nil {
			return fmt.Errorf("resolve posting for scoring: %w", err)
		}

		return engine.Score(ctx, payload.ApplicationID, payload.ProfileText, posting)
	}
}

func flushHandler(batcher *digest.Batcher) queue.Handler {
	return func(ctx context.Context, task *queue.Task) error {
		_, err := batcher.Flush(ctx, time.Now())
		return err
	}
}
