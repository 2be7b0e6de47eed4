// Package handlers holds the HTTP endpoints: channel webhooks on the
// public surface and the admin API behind JWT auth.
package handlers

import (
	"errors"
	"net/http"

	"github.com/shadowspark/support-ai-platform/internal/channels"
	"github.com/shadowspark/support-ai-platform/internal/channels/whatsapp"
	"github.com/shadowspark/support-ai-platform/internal/conversation"
	"github.com/shadowspark/support-ai-platform/internal/observability/metrics"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// emptyTwiML acknowledges a Twilio webhook without sending an inline
// reply; replies go out asynchronously through the REST API.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// WebhookHandler accepts channel webhooks and enqueues them. The
// webhook path does no model work; it must stay fast so providers do
// not retry.
type WebhookHandler struct {
	adapter   channels.Adapter
	publisher *conversation.Publisher
	clientID  string
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
}

// NewWebhookHandler creates the webhook endpoint handler.
func NewWebhookHandler(
	adapter channels.Adapter,
	publisher *conversation.Publisher,
	clientID string,
	m *metrics.PipelineMetrics,
	logger *logging.Logger,
) *WebhookHandler {
	if adapter == nil {
		panic("handlers: webhook handler requires a channel adapter")
	}
	if publisher == nil {
		panic("handlers: webhook handler requires a publisher")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		adapter:   adapter,
		publisher: publisher,
		clientID:  clientID,
		metrics:   m,
		logger:    logger,
	}
}

// HandleWhatsApp validates, normalizes and enqueues a Twilio WhatsApp
// webhook, acknowledging with empty TwiML.
func (h *WebhookHandler) HandleWhatsApp(w http.ResponseWriter, r *http.Request) {
	msg, err := h.adapter.Parse(r)
	if err != nil {
		if errors.Is(err, whatsapp.ErrInvalidSignature) {
			h.logger.Warn("rejected webhook with invalid signature", "remote_ip", r.RemoteAddr)
			h.metrics.ObserveInbound(h.adapter.Type(), "rejected_signature")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		h.logger.Warn("failed to parse webhook", "error", err)
		h.metrics.ObserveInbound(h.adapter.Type(), "rejected_malformed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err = h.publisher.EnqueueMessage(r.Context(), conversation.InboundMessage{
		ClientID:         h.clientID,
		ChannelType:      msg.ChannelType,
		ChannelUserID:    msg.ChannelUserID,
		ChannelMessageID: msg.ChannelMessageID,
		Text:             msg.Text,
		UserName:         msg.UserName,
		ReceivedAt:       msg.Timestamp,
	})
	if err != nil {
		h.logger.Error("failed to enqueue inbound message",
			"channel_message_id", msg.ChannelMessageID, "error", err)
		h.metrics.ObserveInbound(h.adapter.Type(), "enqueue_failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound(h.adapter.Type(), "accepted")
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}

// HealthCheck reports liveness.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
