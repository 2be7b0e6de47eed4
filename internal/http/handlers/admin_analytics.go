package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shadowspark/support-ai-platform/internal/analytics"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// AdminAnalyticsHandler serves per-client usage summaries.
type AdminAnalyticsHandler struct {
	recorder *analytics.Recorder
	logger   *logging.Logger
}

// NewAdminAnalyticsHandler creates the analytics admin handler.
func NewAdminAnalyticsHandler(recorder *analytics.Recorder, logger *logging.Logger) *AdminAnalyticsHandler {
	if recorder == nil {
		panic("handlers: analytics handler requires a recorder")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAnalyticsHandler{recorder: recorder, logger: logger}
}

// ClientSummary returns aggregate conversation metrics for one client.
func (h *AdminAnalyticsHandler) ClientSummary(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(chi.URLParam(r, "clientID"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client id required")
		return
	}

	summary, err := h.recorder.Summary(r.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to load client analytics", "client_id", clientID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
