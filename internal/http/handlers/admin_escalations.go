package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shadowspark/support-ai-platform/internal/escalation"
	"github.com/shadowspark/support-ai-platform/internal/intent"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// AdminEscalationsHandler serves the staff queue API.
type AdminEscalationsHandler struct {
	store  *escalation.Store
	logger *logging.Logger
}

// NewAdminEscalationsHandler creates the escalations admin handler.
func NewAdminEscalationsHandler(store *escalation.Store, logger *logging.Logger) *AdminEscalationsHandler {
	if store == nil {
		panic("handlers: escalations handler requires a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminEscalationsHandler{store: store, logger: logger}
}

type escalationResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	QueueType      string     `json:"queue_type"`
	Priority       int        `json:"priority"`
	Reason         string     `json:"reason,omitempty"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func toEscalationResponse(e escalation.Entry) escalationResponse {
	return escalationResponse{
		ID:             e.ID.String(),
		ConversationID: e.ConversationID.String(),
		QueueType:      string(e.QueueType),
		Priority:       e.Priority,
		Reason:         e.Reason,
		AssignedTo:     e.AssignedTo,
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt,
		ResolvedAt:     e.ResolvedAt,
	}
}

// ListPending returns the pending queue, highest priority first.
// Optional query params: queue, limit.
func (h *AdminEscalationsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	queueType := intent.QueueType(strings.TrimSpace(r.URL.Query().Get("queue")))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.store.Pending(r.Context(), queueType, limit)
	if err != nil {
		h.logger.Error("failed to list pending escalations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list escalations")
		return
	}

	out := make([]escalationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEscalationResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalations": out})
}

// Stats returns per-status counts, optionally scoped by queue type.
func (h *AdminEscalationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	queueType := intent.QueueType(strings.TrimSpace(r.URL.Query().Get("queue")))

	stats, err := h.store.QueueStats(r.Context(), queueType)
	if err != nil {
		h.logger.Error("failed to load queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Assign claims a pending escalation for an agent.
func (h *AdminEscalationsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := escalationID(w, r)
	if !ok {
		return
	}

	var body struct {
		AssignedTo string `json:"assigned_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.AssignedTo) == "" {
		writeError(w, http.StatusBadRequest, "assigned_to required")
		return
	}

	if err := h.store.Assign(r.Context(), id, body.AssignedTo); err != nil {
		h.logger.Warn("escalation assign rejected", "escalation_id", id, "error", err)
		writeError(w, http.StatusConflict, "escalation not assignable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(escalation.StatusAssigned)})
}

// Progress marks an assigned escalation as being worked.
func (h *AdminEscalationsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := escalationID(w, r)
	if !ok {
		return
	}

	if err := h.store.MarkInProgress(r.Context(), id); err != nil {
		h.logger.Warn("escalation progress rejected", "escalation_id", id, "error", err)
		writeError(w, http.StatusConflict, "escalation not in progressable state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(escalation.StatusInProgress)})
}

// Resolve closes an escalation from any live state.
func (h *AdminEscalationsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := escalationID(w, r)
	if !ok {
		return
	}

	if err := h.store.Resolve(r.Context(), id); err != nil {
		h.logger.Warn("escalation resolve rejected", "escalation_id", id, "error", err)
		writeError(w, http.StatusConflict, "escalation not resolvable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(escalation.StatusResolved)})
}

func escalationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "escalationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid escalation id")
		return uuid.Nil, false
	}
	return id, true
}
