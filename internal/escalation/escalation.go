// Package escalation manages the staffing queue that conversations
// land in when the bot hands off to a human.
package escalation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shadowspark/support-ai-platform/internal/intent"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("support/escalation")

// Status is the lifecycle of a queue entry.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

// Entry is one escalation queue record.
type Entry struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	QueueType      intent.QueueType
	Priority       int
	Reason         string
	AssignedTo     string
	Status         Status
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Stats summarizes a queue for the admin dashboard.
type Stats struct {
	Pending     int     `json:"pending"`
	Assigned    int     `json:"assigned"`
	InProgress  int     `json:"in_progress"`
	Resolved    int     `json:"resolved"`
	AvgPriority float64 `json:"avg_priority"`
}

// Notifier alerts staff about new escalations. Implementations must be
// safe to call best-effort; failures are logged, never propagated.
type Notifier interface {
	NotifyEscalation(ctx context.Context, entry Entry) error
}

// Store manages escalation queue entries in PostgreSQL.
type Store struct {
	db       *sql.DB
	logger   *logging.Logger
	notifier Notifier
}

// NewStore creates an escalation store. notifier may be nil.
func NewStore(db *sql.DB, logger *logging.Logger, notifier Notifier) *Store {
	if db == nil {
		panic("escalation: store requires a database")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger, notifier: notifier}
}

// Create inserts a PENDING entry and alerts staff. Callers should
// check HasActive first to keep one live entry per conversation.
func (s *Store) Create(ctx context.Context, conversationID uuid.UUID, queueType intent.QueueType, priority int, reason string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "escalation.create")
	defer span.End()

	entry := &Entry{
		ID:             uuid.New(),
		ConversationID: conversationID,
		QueueType:      queueType,
		Priority:       priority,
		Reason:         reason,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalation_queue (id, conversation_id, queue_type, priority, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.ConversationID, string(entry.QueueType), entry.Priority, entry.Reason, string(entry.Status), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("escalation: create: %w", err)
	}

	span.SetAttributes(
		attribute.String("escalation.id", entry.ID.String()),
		attribute.String("escalation.queue", string(queueType)),
		attribute.Int("escalation.priority", priority),
	)
	s.logger.Info("escalation created",
		"escalation_id", entry.ID,
		"conversation_id", conversationID,
		"queue_type", queueType,
		"priority", priority)

	if s.notifier != nil {
		if err := s.notifier.NotifyEscalation(ctx, *entry); err != nil {
			s.logger.Warn("escalation alert failed",
				"escalation_id", entry.ID, "error", err)
		}
	}

	return entry, nil
}

// HasActive reports whether the conversation already has an unresolved
// entry. Used to keep escalation creation idempotent. Errors resolve
// to false so a broken check cannot block a handoff.
func (s *Store) HasActive(ctx context.Context, conversationID uuid.UUID) bool {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM escalation_queue
		WHERE conversation_id = $1 AND status IN ($2, $3, $4)
	`, conversationID, string(StatusPending), string(StatusAssigned), string(StatusInProgress)).Scan(&count)
	if err != nil {
		s.logger.Error("active escalation check failed",
			"conversation_id", conversationID, "error", err)
		return false
	}
	return count > 0
}

// Pending lists PENDING entries ordered by priority, then age.
// queueType filters when non-empty.
func (s *Store) Pending(ctx context.Context, queueType intent.QueueType, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, conversation_id, queue_type, priority, COALESCE(reason, ''),
		       COALESCE(assigned_to, ''), status, created_at, resolved_at
		FROM escalation_queue
		WHERE status = $1
	`
	args := []any{string(StatusPending)}
	if queueType != "" {
		query += " AND queue_type = $2"
		args = append(args, string(queueType))
	}
	query += fmt.Sprintf(" ORDER BY priority ASC, created_at ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escalation: list pending: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Assign moves a PENDING entry to ASSIGNED.
func (s *Store) Assign(ctx context.Context, escalationID uuid.UUID, assignedTo string) error {
	return s.transition(ctx, escalationID, "assign", `
		UPDATE escalation_queue SET status = $1, assigned_to = $2
		WHERE id = $3 AND status = $4
	`, string(StatusAssigned), assignedTo, escalationID, string(StatusPending))
}

// MarkInProgress moves an ASSIGNED entry to IN_PROGRESS.
func (s *Store) MarkInProgress(ctx context.Context, escalationID uuid.UUID) error {
	return s.transition(ctx, escalationID, "mark in progress", `
		UPDATE escalation_queue SET status = $1
		WHERE id = $2 AND status = $3
	`, string(StatusInProgress), escalationID, string(StatusAssigned))
}

// Resolve closes an entry from any live state.
func (s *Store) Resolve(ctx context.Context, escalationID uuid.UUID) error {
	return s.transition(ctx, escalationID, "resolve", `
		UPDATE escalation_queue SET status = $1, resolved_at = $2
		WHERE id = $3 AND status IN ($4, $5, $6)
	`, string(StatusResolved), time.Now(), escalationID,
		string(StatusPending), string(StatusAssigned), string(StatusInProgress))
}

func (s *Store) transition(ctx context.Context, escalationID uuid.UUID, action, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("escalation: %s: %w", action, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("escalation: %s result: %w", action, err)
	}
	if rows == 0 {
		return fmt.Errorf("escalation: %s: entry %s not in expected state", action, escalationID)
	}
	s.logger.Info("escalation updated", "escalation_id", escalationID, "action", action)
	return nil
}

// QueueStats aggregates entry counts per status. queueType filters when
// non-empty; avg priority covers unresolved entries only.
func (s *Store) QueueStats(ctx context.Context, queueType intent.QueueType) (Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'ASSIGNED'),
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
			COUNT(*) FILTER (WHERE status = 'RESOLVED'),
			COALESCE(AVG(priority) FILTER (WHERE status <> 'RESOLVED'), 3)
		FROM escalation_queue
	`
	args := []any{}
	if queueType != "" {
		query += " WHERE queue_type = $1"
		args = append(args, string(queueType))
	}

	var stats Stats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Pending, &stats.Assigned, &stats.InProgress, &stats.Resolved, &stats.AvgPriority,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("escalation: stats: %w", err)
	}
	return stats, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var queueType, status string
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.ConversationID, &queueType, &e.Priority, &e.Reason,
			&e.AssignedTo, &status, &e.CreatedAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("escalation: scan entry: %w", err)
		}
		e.QueueType = intent.QueueType(queueType)
		e.Status = Status(status)
		if resolvedAt.Valid {
			e.ResolvedAt = &resolvedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
