// Package channels defines the contract between messaging channels and
// the conversation pipeline. Adapters normalize inbound webhooks into a
// channel-agnostic message and deliver outbound replies.
package channels

import (
	"context"
	"net/http"
	"time"
)

// Channel type identifiers stored on user_channels rows.
const (
	TypeWhatsApp  = "WHATSAPP"
	TypeInstagram = "INSTAGRAM"
	TypeWebchat   = "WEBCHAT"
)

// NormalizedMessage is an inbound message with channel specifics
// stripped away.
type NormalizedMessage struct {
	ChannelType      string            `json:"channel_type"`
	ChannelUserID    string            `json:"channel_user_id"`
	ChannelMessageID string            `json:"channel_message_id"`
	Text             string            `json:"text"`
	UserName         string            `json:"user_name,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	RawPayload       map[string]string `json:"raw_payload,omitempty"`
}

// OutboundReply is a message the pipeline wants delivered to a user.
type OutboundReply struct {
	ChannelUserID string
	Body          string
}

// Adapter receives webhooks from one channel and sends replies back.
type Adapter interface {
	Type() string
	// Parse validates and normalizes an inbound webhook request.
	Parse(r *http.Request) (*NormalizedMessage, error)
	// SendReply delivers a reply, splitting it if the channel caps
	// message length.
	SendReply(ctx context.Context, reply OutboundReply) error
}
