package handler

import (
	"net/http"

	"promo-orders/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// UsageHandler serves promo usage history.
type UsageHandler struct {
	service service.UsageService
	logger  zerolog.Logger
}

// NewUsageHandler creates a new usage history handler.
func NewUsageHandler(service service.UsageService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		service: service,
		logger:  logger.With().Str("handler", "usage").Logger(),
	}
}

// ByCode handles GET /api/promo-code-usage/promo/{code}.
func (h *UsageHandler) ByCode(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	history, err := h.service.HistoryByCode(r.Context(), chi.URLParam(r, "code"), page, limit)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// ByUser handles GET /api/promo-code-usage/user/{userId}.
func (h *UsageHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userId", h.logger)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	history, err := h.service.HistoryByUser(r.Context(), userID, page, limit)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, history)
}
