// Package transcript keeps a live, ephemeral copy of each conversation
// in Redis so agents picking up a handoff see recent context without a
// database round trip. PostgreSQL remains the durable record.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "transcript:"

// transcriptTTL keeps entries around long past the conversation window
// so overnight handoffs still have context.
const transcriptTTL = 24 * time.Hour

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Body      string    `json:"body"`
	Intent    string    `json:"intent,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends and lists live transcripts. A nil Store is a no-op.
type Store struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewStore creates a transcript store, or nil when Redis is not
// configured.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{
		redis:       redisClient,
		tracer:      otel.Tracer("support/transcript"),
		maxMessages: 250,
	}
}

// Append adds one message to the live transcript and refreshes its TTL.
func (s *Store) Append(ctx context.Context, conversationID string, msg Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("transcript: conversationID required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transcript: marshal message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	k := key(conversationID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, k, data)
	pipe.Expire(ctx, k, transcriptTTL)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, k, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append message: %w", err)
	}
	return nil
}

// List returns the most recent limit messages in order, or the whole
// transcript when limit is zero.
func (s *Store) List(ctx context.Context, conversationID string, limit int64) ([]Message, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if conversationID == "" {
		return nil, errors.New("transcript: conversationID required")
	}

	ctx, span := s.tracer.Start(ctx, "transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, key(conversationID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("transcript: list: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func key(conversationID string) string {
	return keyPrefix + conversationID
}
