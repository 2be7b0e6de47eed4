package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// jobQueue is the transport between the webhook handler and the
// workers. SQS backs it in deployments, a channel in local runs.
type jobQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, max int, wait time.Duration) ([]jobDelivery, error)
	Delete(ctx context.Context, receipt string) error
}

// jobDelivery is one received queue entry. Receipt is what Delete
// needs to acknowledge it.
type jobDelivery struct {
	MessageID string
	Body      string
	Receipt   string
}

// jobEnvelope wraps an inbound message for the wire. EnqueuedAt lets
// workers report how long jobs sat in the queue.
type jobEnvelope struct {
	JobID      string         `json:"job_id"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	Message    InboundMessage `json:"message"`
}

// sealJob stamps an envelope around msg and serializes it.
func sealJob(msg InboundMessage) (jobEnvelope, string, error) {
	env := jobEnvelope{
		JobID:      uuid.NewString(),
		EnqueuedAt: time.Now().UTC(),
		Message:    msg,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return jobEnvelope{}, "", fmt.Errorf("conversation: encode job: %w", err)
	}
	return env, string(body), nil
}

func openJob(body string) (jobEnvelope, error) {
	var env jobEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return jobEnvelope{}, fmt.Errorf("conversation: decode job: %w", err)
	}
	return env, nil
}
