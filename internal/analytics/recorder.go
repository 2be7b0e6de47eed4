// Package analytics keeps per-conversation usage aggregates. Every
// write is best effort: analytics must never fail the message pipeline,
// so errors are logged and swallowed.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shadowspark/support-ai-platform/internal/intent"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// Response time EWMA weights: history 0.8, new sample 0.2.
const (
	ewmaHistoryWeight = 0.8
	ewmaSampleWeight  = 0.2
)

// UserMessageEvent is recorded once per inbound message.
type UserMessageEvent struct {
	ConversationID uuid.UUID
	ClientID       string
	Intent         intent.Intent
	TokensUsed     int64
	CostUsed       float64
	ResponseTimeMs int64
}

// ClientSummary aggregates a client's conversations for the admin API.
type ClientSummary struct {
	TotalConversations int            `json:"total_conversations"`
	TotalMessages      int64          `json:"total_messages"`
	TotalTokensUsed    int64          `json:"total_tokens_used"`
	TotalCostUsed      float64        `json:"total_cost_used"`
	AvgResponseTimeMs  int64          `json:"avg_response_time_ms"`
	HandoffCount       int            `json:"handoff_count"`
	IntentBreakdown    map[string]int `json:"intent_breakdown"`
}

// Recorder writes conversation analytics rows.
type Recorder struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewRecorder creates an analytics recorder.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{db: db, logger: logger}
}

// RecordUserMessage upserts the conversation's analytics row for one
// inbound message. The response time average is an EWMA so recent
// latency dominates without storing samples.
func (r *Recorder) RecordUserMessage(ctx context.Context, event UserMessageEvent) {
	var avgResponse sql.NullInt64
	var existingIntent sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT avg_response_time_ms, intent
		FROM conversation_analytics
		WHERE conversation_id = $1
	`, event.ConversationID).Scan(&avgResponse, &existingIntent)

	now := time.Now()
	switch {
	case err == sql.ErrNoRows:
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO conversation_analytics (
				conversation_id, client_id, message_count, user_message_count,
				ai_message_count, intent, total_tokens_used, total_cost_used,
				avg_response_time_ms, first_message_at, last_message_at, updated_at
			) VALUES ($1, $2, 1, 1, 0, $3, $4, $5, $6, $7, $7, $7)
		`, event.ConversationID, event.ClientID, nullIntent(event.Intent),
			event.TokensUsed, event.CostUsed, nullMs(event.ResponseTimeMs), now)
	case err == nil:
		newAvg := avgResponse
		if event.ResponseTimeMs > 0 {
			newAvg = sql.NullInt64{
				Int64: int64(math.Round(float64(avgResponse.Int64)*ewmaHistoryWeight + float64(event.ResponseTimeMs)*ewmaSampleWeight)),
				Valid: true,
			}
		}
		in := nullIntent(event.Intent)
		if !in.Valid {
			in = existingIntent
		}
		_, err = r.db.ExecContext(ctx, `
			UPDATE conversation_analytics SET
				message_count = message_count + 1,
				user_message_count = user_message_count + 1,
				intent = $1,
				total_tokens_used = total_tokens_used + $2,
				total_cost_used = total_cost_used + $3,
				avg_response_time_ms = $4,
				last_message_at = $5,
				updated_at = $5
			WHERE conversation_id = $6
		`, in, event.TokensUsed, event.CostUsed, newAvg, now, event.ConversationID)
	}

	if err != nil {
		r.logger.Warn("failed to record user message analytics",
			"conversation_id", event.ConversationID, "error", err)
	}
}

// RecordAIResponse adds an assistant reply's usage to the aggregates.
func (r *Recorder) RecordAIResponse(ctx context.Context, conversationID uuid.UUID, tokensUsed int64, costUsed float64) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_analytics SET
			message_count = message_count + 1,
			ai_message_count = ai_message_count + 1,
			total_tokens_used = total_tokens_used + $1,
			total_cost_used = total_cost_used + $2,
			last_message_at = $3,
			updated_at = $3
		WHERE conversation_id = $4
	`, tokensUsed, costUsed, time.Now(), conversationID)
	if err != nil {
		r.logger.Warn("failed to record AI response analytics",
			"conversation_id", conversationID, "error", err)
	}
}

// RecordHandoff stores why a conversation left the bot.
func (r *Recorder) RecordHandoff(ctx context.Context, conversationID uuid.UUID, reason string) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_analytics SET handoff_reason = $1, updated_at = $2
		WHERE conversation_id = $3
	`, reason, time.Now(), conversationID)
	if err != nil {
		r.logger.Warn("failed to record handoff analytics",
			"conversation_id", conversationID, "error", err)
	}
}

// Summary aggregates a client's analytics. Unlike the recording paths
// this is a read API and returns errors to the caller.
func (r *Recorder) Summary(ctx context.Context, clientID string) (*ClientSummary, error) {
	summary := &ClientSummary{IntentBreakdown: map[string]int{}}

	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(message_count), 0),
		       COALESCE(SUM(total_tokens_used), 0),
		       COALESCE(SUM(total_cost_used), 0),
		       AVG(avg_response_time_ms),
		       COUNT(*) FILTER (WHERE handoff_reason IS NOT NULL)
		FROM conversation_analytics
		WHERE client_id = $1
	`, clientID).Scan(
		&summary.TotalConversations, &summary.TotalMessages,
		&summary.TotalTokensUsed, &summary.TotalCostUsed,
		&avg, &summary.HandoffCount,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: summary: %w", err)
	}
	if avg.Valid {
		summary.AvgResponseTimeMs = int64(math.Round(avg.Float64))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT intent, COUNT(*)
		FROM conversation_analytics
		WHERE client_id = $1 AND intent IS NOT NULL
		GROUP BY intent
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("analytics: intent breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("analytics: scan breakdown: %w", err)
		}
		summary.IntentBreakdown[name] = count
	}
	return summary, rows.Err()
}

func nullIntent(in intent.Intent) sql.NullString {
	if in == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(in), Valid: true}
}

func nullMs(ms int64) sql.NullInt64 {
	if ms <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ms, Valid: true}
}
