package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shadowspark/support-ai-platform/internal/conversation"
	"github.com/shadowspark/support-ai-platform/internal/transcript"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// AdminConversationsHandler exposes conversation transcripts to staff:
// the durable record from PostgreSQL and the live mirror from Redis.
type AdminConversationsHandler struct {
	store      *conversation.Store
	transcript *transcript.Store
	logger     *logging.Logger
}

// NewAdminConversationsHandler creates the conversations admin handler.
// transcriptStore may be nil when Redis is not configured.
func NewAdminConversationsHandler(store *conversation.Store, transcriptStore *transcript.Store, logger *logging.Logger) *AdminConversationsHandler {
	if store == nil {
		panic("handlers: conversations handler requires a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{store: store, transcript: transcriptStore, logger: logger}
}

type messageResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Intent     string    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Priority   int       `json:"priority,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Messages returns the persisted transcript of a conversation.
func (h *AdminConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.store.Messages(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to load conversation messages",
			"conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse{
			ID:         m.ID.String(),
			Role:       string(m.Role),
			Content:    m.Content,
			Intent:     string(m.Intent),
			Confidence: m.Confidence,
			Priority:   m.Priority,
			CreatedAt:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// LiveTranscript returns the recent Redis-backed transcript, for agents
// picking up a handoff.
func (h *AdminConversationsHandler) LiveTranscript(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := conversationID(w, r)
	if !ok {
		return
	}
	if h.transcript == nil {
		writeError(w, http.StatusNotFound, "live transcripts not configured")
		return
	}

	messages, err := h.transcript.List(r.Context(), conversationID.String(), 50)
	if err != nil {
		h.logger.Error("failed to load live transcript",
			"conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if messages == nil {
		messages = []transcript.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}
