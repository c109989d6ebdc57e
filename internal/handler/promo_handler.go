package handler

import (
	"net/http"

	"promo-orders/internal/model"
	"promo-orders/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PromoHandler handles promo code HTTP requests.
type PromoHandler struct {
	service  service.PromoService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPromoHandler creates a new promo code handler.
func NewPromoHandler(service service.PromoService, logger zerolog.Logger) *PromoHandler {
	return &PromoHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With().Str("handler", "promo").Logger(),
	}
}

// Create handles POST /api/promo-codes.
func (h *PromoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePromoCodeRequest
	if !decodeRequest(w, r, h.validate, &req, h.logger) {
		return
	}

	promo, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, promo)
}

// List handles GET /api/promo-codes.
func (h *PromoHandler) List(w http.ResponseWriter, r *http.Request) {
	promos, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if promos == nil {
		promos = []model.PromoCode{}
	}

	writeJSON(w, http.StatusOK, promos)
}

// Validate handles POST /api/promo-codes/validate.
func (h *PromoHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidatePromoCodeRequest
	if !decodeRequest(w, r, h.validate, &req, h.logger) {
		return
	}

	result, err := h.service.Validate(r.Context(), req.Code, uuid.MustParse(req.UserID))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Apply handles POST /api/promo-codes/apply.
func (h *PromoHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req model.ApplyPromoCodeRequest
	if !decodeRequest(w, r, h.validate, &req, h.logger) {
		return
	}

	result, err := h.service.Apply(r.Context(), req.Code, uuid.MustParse(req.UserID), req.OrderAmount)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/promo-codes/stats?code=.
func (h *PromoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "code is required", h.logger)
		return
	}

	stats, err := h.service.Stats(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
