package queue

import (
	"context"
	"testing"
	"time"

	"applyflow/internal/config"
)

func backoffQueue(base time.Duration) *Queue {
	cfg := &config.Config{}
	cfg.Workers.BaseBackoff = base
	cfg.Workers.MaxAttempts = 3
	return NewQueue(nil, cfg)
}

func TestBackoffDoublesPerAttempt(t *testing.T) {
	q := backoffQueue(10 * time.Second)

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
	}

	for _, tc := range cases {
		if got := q.backoffFor(tc.attempts); got != tc.want {
			t.Errorf("backoffFor(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}

func TestBackoffZeroAttemptsUsesBase(t *testing.T) {
	q := backoffQueue(5 * time.Second)
	if got := q.backoffFor(0); got != 5*time.Second {
		t.Errorf("backoffFor(0) = %s, want base", got)
	}
}

func TestClaimTracksProcessingEntry(t *testing.T) {
	q := backoffQueue(10 * time.Second)
	raw := `{"id":"t1","type":"score.compute","payload":{},"priority":"default","attempts":1,"max_attempts":3}`

	task, err := q.claim(raw, processingKeyPrefix+"2")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if task.Attempts != 2 {
		t.Errorf("attempts = %d, claim should count the delivery", task.Attempts)
	}
	// The ack must remove the exact entry that was moved, so the original
	// encoding is retained, not a re-marshal with the bumped attempt count.
	if task.raw != raw {
		t.Errorf("raw = %q, want the original entry", task.raw)
	}
	if task.processingKey != processingKeyPrefix+"2" {
		t.Errorf("processingKey = %q", task.processingKey)
	}
}

func TestClaimRejectsUndecodableEntry(t *testing.T) {
	q := backoffQueue(10 * time.Second)
	if _, err := q.claim(`{broken`, processingKeyPrefix+"1"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestAckIgnoresUnclaimedTask(t *testing.T) {
	// Tasks built by Enqueue never sat in a processing list; ack must not
	// touch redis for them.
	q := backoffQueue(10 * time.Second)
	q.ack(context.Background(), &Task{ID: "t1"})
}

func TestReadyKeyForPriority(t *testing.T) {
	if got := readyKeyFor(PriorityHigh); got != "queue:ready:high" {
		t.Errorf("readyKeyFor(high) = %q", got)
	}
	if got := readyKeyFor(PriorityLow); got != "queue:ready:low" {
		t.Errorf("readyKeyFor(low) = %q", got)
	}
}

func TestReadyKeyOrderDrainsHighFirst(t *testing.T) {
	if len(readyKeys) != 3 {
		t.Fatalf("readyKeys = %v, want three priorities", readyKeys)
	}
	if readyKeys[0] != readyKeyPrefix+string(PriorityHigh) {
		t.Errorf("first ready key = %q, want high priority", readyKeys[0])
	}
	if readyKeys[2] != readyKeyPrefix+string(PriorityLow) {
		t.Errorf("last ready key = %q, want low priority", readyKeys[2])
	}
}
