package escalation

import (
	"context"
	"fmt"

	"github.com/shadowspark/support-ai-platform/internal/notify"
)

// EmailNotifier alerts a staff inbox whenever a conversation lands in
// the escalation queue.
type EmailNotifier struct {
	sender notify.EmailSender
	to     string
}

// NewEmailNotifier creates a notifier that emails the given address.
// Returns nil when sender or address is missing so callers can pass the
// result straight to NewStore.
func NewEmailNotifier(sender notify.EmailSender, to string) *EmailNotifier {
	if sender == nil || to == "" {
		return nil
	}
	return &EmailNotifier{sender: sender, to: to}
}

// NotifyEscalation emails a summary of the new queue entry.
func (n *EmailNotifier) NotifyEscalation(ctx context.Context, entry Entry) error {
	if n == nil {
		return nil
	}
	subject := fmt.Sprintf("[P%d] New %s escalation", entry.Priority, entry.QueueType)
	body := fmt.Sprintf(
		"A conversation needs human attention.\n\n"+
			"Conversation: %s\nQueue: %s\nPriority: %d\nReason: %s\nCreated: %s\n",
		entry.ConversationID, entry.QueueType, entry.Priority, entry.Reason,
		entry.CreatedAt.Format("2006-01-02 15:04:05 MST"),
	)
	return n.sender.Send(ctx, notify.EmailMessage{
		To:      n.to,
		ToName:  "Support Team",
		Subject: subject,
		Body:    body,
	})
}
