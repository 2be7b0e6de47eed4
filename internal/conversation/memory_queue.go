package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a channel-backed jobQueue for local development and
// tests. Deliveries are acknowledged implicitly, so Delete is a no-op
// and a crashed consumer loses its batch.
type MemoryQueue struct {
	jobs chan jobDelivery
}

// NewMemoryQueue returns a queue holding at most capacity undelivered
// jobs. Send blocks once the buffer fills.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryQueue{jobs: make(chan jobDelivery, capacity)}
}

func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.jobs <- jobDelivery{MessageID: uuid.NewString(), Body: body, Receipt: uuid.NewString()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to wait for the first job, then drains whatever
// else is immediately available up to max. A zero wait blocks until a
// job arrives or ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]jobDelivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if max <= 0 {
		max = 1
	}

	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	var first jobDelivery
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline:
		return nil, nil
	case first = <-q.jobs:
	}

	batch := append(make([]jobDelivery, 0, max), first)
	for len(batch) < max {
		select {
		case d := <-q.jobs:
			batch = append(batch, d)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}
