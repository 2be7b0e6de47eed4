package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shadowspark/support-ai-platform/internal/intent"
)

// Store persists users, conversations and messages to PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new conversation store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// ResolveUser finds the user behind a channel identity, creating the
// user and channel link on first contact. Concurrent first messages
// race on the channel unique constraint; the loser re-reads the winner.
func (s *Store) ResolveUser(ctx context.Context, channelType, channelUserID, userName string) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("conversation: store not configured")
	}

	user, err := s.lookupUser(ctx, channelType, channelUserID)
	if err == nil {
		return user, nil
	}
	if err != sql.ErrNoRows {
		return User{}, fmt.Errorf("conversation: lookup user: %w", err)
	}

	phone := ""
	if channelType == "WHATSAPP" {
		phone = channelUserID
	}

	newID := uuid.New()
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("conversation: begin create user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_users (id, name, phone, is_vip, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, newID, userName, phone, false, now)
	if err == nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_channels (channel_type, channel_user_id, user_id, created_at)
			VALUES ($1, $2, $3, $4)
		`, channelType, channelUserID, newID, now)
	}
	if err == nil {
		err = tx.Commit()
	}

	if err != nil {
		if isUniqueViolation(err) {
			// Another delivery created this user first.
			user, retryErr := s.lookupUser(ctx, channelType, channelUserID)
			if retryErr == nil {
				return user, nil
			}
			return User{}, fmt.Errorf("conversation: re-read user after conflict: %w", retryErr)
		}
		return User{}, fmt.Errorf("conversation: create user: %w", err)
	}

	return User{ID: newID, Name: userName, Phone: phone, CreatedAt: now}, nil
}

func (s *Store) lookupUser(ctx context.Context, channelType, channelUserID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.phone, u.is_vip, u.created_at
		FROM chat_users u
		JOIN user_channels c ON c.user_id = u.id
		WHERE c.channel_type = $1 AND c.channel_user_id = $2
	`, channelType, channelUserID).Scan(&user.ID, &user.Name, &user.Phone, &user.IsVIP, &user.CreatedAt)
	return user, err
}

// ResolveConversation returns the user's ACTIVE conversation on the
// channel if it saw activity within ConversationTimeout, otherwise
// starts a new one. Runs in a transaction so concurrent deliveries do
// not fork the conversation.
func (s *Store) ResolveConversation(ctx context.Context, userID uuid.UUID, channel, clientID string) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, fmt.Errorf("conversation: store not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("conversation: begin resolve: %w", err)
	}
	defer tx.Rollback()

	cutoff := time.Now().Add(-ConversationTimeout)

	var existing uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE user_id = $1 AND channel = $2 AND client_id = $3
		  AND status = $4 AND updated_at >= $5
		ORDER BY updated_at DESC
		LIMIT 1
	`, userID, channel, clientID, StatusActive, cutoff).Scan(&existing)

	if err == nil {
		if commitErr := tx.Commit(); commitErr != nil {
			return uuid.Nil, fmt.Errorf("conversation: commit resolve: %w", commitErr)
		}
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("conversation: find active: %w", err)
	}

	newID := uuid.New()
	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, client_id, channel, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, newID, userID, clientID, channel, StatusActive, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("conversation: create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("conversation: commit create: %w", err)
	}

	return newID, nil
}

// SaveUserMessage inserts an inbound message. The unique constraint on
// channel_message_id is the dedup lock across concurrent webhook
// deliveries; the second insert is a no-op and saved is false.
func (s *Store) SaveUserMessage(ctx context.Context, conversationID uuid.UUID, text, channelMessageID string) (messageID uuid.UUID, saved bool, err error) {
	if s == nil || s.db == nil {
		return uuid.Nil, false, fmt.Errorf("conversation: store not configured")
	}

	messageID = uuid.New()
	var channelID any
	if channelMessageID != "" {
		channelID = channelMessageID
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, channel_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel_message_id) DO NOTHING
	`, messageID, conversationID, RoleUser, text, channelID, time.Now())
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("conversation: save user message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("conversation: read insert result: %w", err)
	}
	if rows == 0 {
		return uuid.Nil, false, nil
	}
	return messageID, true, nil
}

// ClassifyMessage back-fills classification results onto a stored
// message after the pipeline has scored it.
func (s *Store) ClassifyMessage(ctx context.Context, messageID uuid.UUID, cls intent.Classification, priority int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("conversation: store not configured")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET intent = $1, confidence = $2, priority = $3
		WHERE id = $4
	`, string(cls.Intent), cls.Confidence, priority, messageID)
	if err != nil {
		return fmt.Errorf("conversation: classify message: %w", err)
	}
	return nil
}

// LoadSnapshot loads the conversation state needed to process one
// inbound message: status, summary and the last ContextWindow messages
// in chronological order.
func (s *Store) LoadSnapshot(ctx context.Context, conversationID uuid.UUID) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("conversation: store not configured")
	}

	snap := &Snapshot{ConversationID: conversationID}
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, client_id, status, summary
		FROM conversations
		WHERE id = $1
	`, conversationID).Scan(&snap.UserID, &snap.ClientID, &snap.Status, &summary)
	if err != nil {
		return nil, fmt.Errorf("conversation: load conversation: %w", err)
	}
	snap.Summary = summary.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, ContextWindow)
	if err != nil {
		return nil, fmt.Errorf("conversation: load messages: %w", err)
	}
	defer rows.Close()

	var recent []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		recent = append(recent, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate messages: %w", err)
	}

	// Chronological order for the model prompt.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	snap.Messages = recent

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND role = $2
	`, conversationID, RoleUser).Scan(&snap.UserMessageCount)
	if err != nil {
		return nil, fmt.Errorf("conversation: count user messages: %w", err)
	}

	return snap, nil
}

// SetHandoffStatus transitions a conversation to HANDOFF. The
// transition is one-way; releasing a conversation back to the bot is a
// staff action outside this pipeline.
func (s *Store) SetHandoffStatus(ctx context.Context, conversationID uuid.UUID) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("conversation: store not configured")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = $1, updated_at = $2
		WHERE id = $3
	`, StatusHandoff, time.Now(), conversationID)
	if err != nil {
		return fmt.Errorf("conversation: set handoff: %w", err)
	}
	return nil
}

// SaveAssistantMessage persists an outbound reply and bumps the
// conversation timestamp in one transaction.
func (s *Store) SaveAssistantMessage(ctx context.Context, conversationID uuid.UUID, text string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("conversation: store not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin save response: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), conversationID, RoleAssistant, text, now)
	if err != nil {
		return fmt.Errorf("conversation: save response: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`, now, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: bump conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit save response: %w", err)
	}
	return nil
}

// Messages returns the stored messages of a conversation in
// chronological order, for the admin transcript view.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID, limit int) ([]StoredMessage, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("conversation: store not configured")
	}

	query := `
		SELECT id, conversation_id, role, content,
		       COALESCE(channel_message_id, ''), COALESCE(intent, ''),
		       COALESCE(confidence, 0), COALESCE(priority, 0), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages: %w", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var in string
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ChannelMessageID, &in, &msg.Confidence, &msg.Priority, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan message row: %w", err)
		}
		msg.Intent = intent.Intent(in)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
