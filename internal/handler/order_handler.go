package handler

import (
	"fmt"
	"net/http"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdempotencyKeyHeader carries the caller's request id when the body has none.
const IdempotencyKeyHeader = "Idempotency-Key"

const dateOnly = "2006-01-02"

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service  service.OrderService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders. The order is queued and the job handle is
// returned with 202.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !decodeRequest(w, r, h.validate, &req, h.logger) {
		return
	}
	if !h.applyIdempotencyKey(w, r, &req) {
		return
	}

	res, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

// CreateDirect handles POST /api/orders/direct.
func (h *OrderHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !decodeRequest(w, r, h.validate, &req, h.logger) {
		return
	}
	if !h.applyIdempotencyKey(w, r, &req) {
		return
	}

	order, err := h.service.CreateOrderDirect(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetAll handles GET /api/orders. Optional filters: userId, startDate and
// endDate as RFC 3339 timestamps or plain dates. A plain endDate covers the
// whole day.
func (h *OrderHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	var filter model.OrderFilter
	q := r.URL.Query()

	if v := q.Get("userId"); v != "" {
		userID, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "Invalid userId format", h.logger)
			return
		}
		filter.UserID = &userID
	}

	var ok bool
	if filter.From, ok = h.dateParam(w, r, "startDate", false); !ok {
		return
	}
	if filter.To, ok = h.dateParam(w, r, "endDate", true); !ok {
		return
	}

	page, limit := pageParams(r)
	orders, err := h.service.GetAllOrders(r.Context(), filter, page, limit)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetJobStatus handles GET /api/orders/jobs/{jobId}.
func (h *OrderHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetJobStatus(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GetByID handles GET /api/orders/{id}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetUserOrders handles GET /api/orders/user/{userId}.
func (h *OrderHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userId", h.logger)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	orders, err := h.service.GetUserOrders(r.Context(), userID, page, limit)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetUserStats handles GET /api/orders/user/{userId}/stats.
func (h *OrderHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userId", h.logger)
	if !ok {
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// applyIdempotencyKey fills the request id from the header when the body has
// none. It writes a 400 and returns false when the header is too long.
func (h *OrderHandler) applyIdempotencyKey(w http.ResponseWriter, r *http.Request, req *model.CreateOrderRequest) bool {
	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > model.MaxRequestIDLength {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation,
			fmt.Sprintf("%s must be at most %d characters", IdempotencyKeyHeader, model.MaxRequestIDLength), h.logger)
		return false
	}
	if req.RequestID == "" {
		req.RequestID = key
	}
	return true
}

// dateParam parses an optional date query parameter, writing a 400 when it is
// malformed.
func (h *OrderHandler) dateParam(w http.ResponseWriter, r *http.Request, name string, endOfDay bool) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t, err = time.Parse(dateOnly, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, fmt.Sprintf("Invalid %s format", name), h.logger)
			return nil, false
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return &t, true
}
