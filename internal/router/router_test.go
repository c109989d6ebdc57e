package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"promo-orders/internal/handler"
	"promo-orders/internal/middleware"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRouter(t *testing.T) {
	logger := zerolog.Nop()
	mux := New(Handlers{
		Orders: handler.NewOrderHandler(nil, logger),
		Promos: handler.NewPromoHandler(nil, logger),
		Usage:  handler.NewUsageHandler(nil, logger),
	}, "secret", logger)

	tests := []struct {
		name           string
		method         string
		path           string
		apiKey         string
		expectedStatus int
	}{
		{name: "Health without key", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "API without key", method: http.MethodGet, path: "/api/promo-codes", expectedStatus: http.StatusUnauthorized},
		{name: "Unknown route", method: http.MethodGet, path: "/api/nothing", apiKey: "secret", expectedStatus: http.StatusNotFound},
		{name: "Wrong method", method: http.MethodDelete, path: "/api/orders/direct", apiKey: "secret", expectedStatus: http.StatusMethodNotAllowed},
		{name: "Malformed order id", method: http.MethodGet, path: "/api/orders/not-a-uuid", apiKey: "secret", expectedStatus: http.StatusBadRequest},
		{name: "Malformed user id", method: http.MethodGet, path: "/api/promo-code-usage/user/42", apiKey: "secret", expectedStatus: http.StatusBadRequest},
		{name: "Stats without code", method: http.MethodGet, path: "/api/promo-codes/stats", apiKey: "secret", expectedStatus: http.StatusBadRequest},
		{name: "Order list with bad date", method: http.MethodGet, path: "/api/orders?startDate=yesterday", apiKey: "secret", expectedStatus: http.StatusBadRequest},
		{name: "Order list with bad user", method: http.MethodGet, path: "/api/orders?userId=42", apiKey: "secret", expectedStatus: http.StatusBadRequest},
		{name: "Preflight", method: http.MethodOptions, path: "/api/orders", expectedStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}
