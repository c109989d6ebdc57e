package repository

import (
	"context"
	"time"

	"promo-orders/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCodeRepository defines the interface for promo code data access operations.
type PromoCodeRepository interface {
	// Create inserts a new promo code. Returns model.ErrPromoCodeExists if the code is taken.
	Create(ctx context.Context, promo *model.PromoCode) error

	// GetByCode retrieves a promo code by its normalized code. Returns nil if not found.
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)

	// GetByID retrieves a promo code by ID. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error)

	// List retrieves all promo codes, newest first.
	List(ctx context.Context) ([]model.PromoCode, error)

	// Redeem consumes one use of the code for userID if the code is active, inside its
	// validity window at now, under its global cap and under the user's cap.
	// Returns nil when the code-level condition does not hold, and
	// model.ErrPromoLimitExceeded when only the per-user cap blocks the redemption.
	Redeem(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal, now time.Time) (*model.PromoCode, error)

	// RedeemForOrder redeems order.PromoCode for order.UserID under the same conditions as
	// Redeem and inserts the order, with promo fields and discount filled in, in the same
	// transaction. Returns model.ErrOrderExists, consuming nothing, if the request id is taken.
	RedeemForOrder(ctx context.Context, order *model.Order, now time.Time) (*model.PromoCode, error)

	// MarkExpired moves an active code to expired.
	MarkExpired(ctx context.Context, id uuid.UUID) error

	// ExpireOverdue marks every active code whose validity ended before now as expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// UsageRepository defines the interface for the promo usage ledger.
type UsageRepository interface {
	// Create appends a usage record. When a record for the same order already exists, the
	// existing record is returned and created is false.
	Create(ctx context.Context, usage *model.PromoUsage) (record *model.PromoUsage, created bool, err error)

	// GetByOrderID retrieves the usage record for an order. Returns nil if not found.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.PromoUsage, error)

	// CountByUser counts usage records for a promo code and user.
	CountByUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error)

	// ListByCode retrieves usage records for a code, most recent first, with the total count.
	ListByCode(ctx context.Context, code string, limit, offset int) ([]model.PromoUsage, int, error)

	// ListByUser retrieves usage records for a user, most recent first, with the total count.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PromoUsage, int, error)

	// ExistsForOrder reports whether the code was used for the order.
	ExistsForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a new order. Returns model.ErrOrderExists if the request id is taken.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByRequestID retrieves the order created for a request. Returns nil if not found.
	GetByRequestID(ctx context.Context, requestID string) (*model.Order, error)

	// ListByUser retrieves a user's orders, newest first, with the total count.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error)

	// List retrieves orders matching filter, newest first, with the total count.
	List(ctx context.Context, filter model.OrderFilter, limit, offset int) ([]model.Order, int, error)

	// StatsByUser aggregates a user's orders.
	StatsByUser(ctx context.Context, userID uuid.UUID) (*model.UserOrderStats, error)
}

// UserRepository defines read access to the user directory.
type UserRepository interface {
	// GetByID retrieves a user by ID. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}
