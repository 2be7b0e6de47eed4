package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/shadowspark/support-ai-platform/internal/intent"
)

// Status is the lifecycle state of a conversation. Only ACTIVE
// conversations get automated replies; HANDOFF is one-way.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusHandoff Status = "HANDOFF"
	StatusPaused  Status = "PAUSED"
	StatusClosed  Status = "CLOSED"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// ContextWindow is the number of recent messages included in the model
// prompt.
const ContextWindow = 10

// ConversationTimeout is how long an ACTIVE conversation stays joinable
// before a new message opens a fresh one.
const ConversationTimeout = 30 * time.Minute

// User is a customer identity shared across channels.
type User struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	IsVIP     bool
	CreatedAt time.Time
}

// Message is one turn of a conversation as fed to the model.
type Message struct {
	Role    Role
	Content string
}

// StoredMessage is the full persisted message record.
type StoredMessage struct {
	ID               uuid.UUID
	ConversationID   uuid.UUID
	Role             Role
	Content          string
	ChannelMessageID string
	Intent           intent.Intent
	Confidence       float64
	Priority         int
	CreatedAt        time.Time
}

// Snapshot is the conversation state loaded once per inbound message.
type Snapshot struct {
	ConversationID   uuid.UUID
	UserID           uuid.UUID
	ClientID         string
	Status           Status
	Summary          string
	Messages         []Message
	UserMessageCount int
}
