package service

import (
	"context"

	"promo-orders/internal/model"
	"promo-orders/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoService defines promo code management and redemption.
type PromoService interface {
	// Create registers a new promo code. An empty code gets a generated one.
	Create(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error)

	// EnsureDefault seeds the default promo code when it does not exist yet.
	EnsureDefault(ctx context.Context) error

	// Get retrieves a promo code by code. Returns model.ErrPromoCodeNotFound if unknown.
	Get(ctx context.Context, code string) (*model.PromoCode, error)

	// GetByID retrieves a promo code by ID. Returns model.ErrPromoCodeNotFound if unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error)

	// List retrieves all promo codes, newest first.
	List(ctx context.Context) ([]model.PromoCode, error)

	// Validate checks, without redeeming, whether userID could use the code now.
	Validate(ctx context.Context, code string, userID uuid.UUID) (*model.ValidationResult, error)

	// Apply previews the discount for amount without redeeming the code.
	Apply(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.ApplyResult, error)

	// Redeem atomically consumes one use of the code for userID.
	Redeem(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.Redemption, error)

	// RedeemForOrder consumes one use of order.PromoCode and stores the order, with the
	// discount applied, atomically. Returns model.ErrOrderExists if the request was already placed.
	RedeemForOrder(ctx context.Context, order *model.Order) (*model.Redemption, error)

	// Stats returns derived usage figures for a code.
	Stats(ctx context.Context, code string) (*model.PromoCodeStats, error)

	// ExpireOverdue marks active codes past their validity window as expired.
	ExpireOverdue(ctx context.Context) (int64, error)
}

// UsageService defines the promo usage ledger.
type UsageService interface {
	// Record appends a usage entry for an order, or returns the existing one.
	Record(ctx context.Context, params model.RecordUsageParams) (*model.PromoUsage, error)

	// HistoryByCode pages through usages of a code, most recent first.
	HistoryByCode(ctx context.Context, code string, page, limit int) (*model.UsagePage, error)

	// HistoryByUser pages through a user's usages, most recent first.
	HistoryByUser(ctx context.Context, userID uuid.UUID, page, limit int) (*model.UsagePage, error)

	// CountForUser counts how often userID has used a code.
	CountForUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error)

	// UsedForOrder reports whether the code was used for the order.
	UsedForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error)
}

// OrderService defines order placement and queries.
type OrderService interface {
	// CreateOrder queues an order request and returns its job handle.
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.EnqueueResult, error)

	// CreateOrderDirect places an order synchronously.
	CreateOrderDirect(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error)

	// ProcessOrderJob is the worker handler for queued order requests.
	ProcessOrderJob(ctx context.Context, job *queue.Job) (any, error)

	// GetJobStatus reports the state of a queued order request.
	GetJobStatus(ctx context.Context, jobID string) (*model.JobStatus, error)

	// GetByID retrieves an order. Returns model.ErrOrderNotFound if unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetUserOrders pages through a user's orders, newest first.
	GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*model.OrderPage, error)

	// GetUserStats aggregates a user's orders.
	GetUserStats(ctx context.Context, userID uuid.UUID) (*model.UserOrderStats, error)

	// GetAllOrders pages through all orders, newest first, narrowed by filter.
	GetAllOrders(ctx context.Context, filter model.OrderFilter, page, limit int) (*model.OrderPage, error)
}

// AnalyticsMirror receives committed orders and usages. It never fails the caller.
type AnalyticsMirror interface {
	SyncOrder(ctx context.Context, ev model.OrderEvent)
	SyncUsage(ctx context.Context, usage model.PromoUsage)
}

// JobQueue is the subset of the order queue used by OrderService.
type JobQueue interface {
	Add(ctx context.Context, name string, data any, opts queue.JobOptions) (*queue.Job, error)
	GetJob(ctx context.Context, id string) (*queue.Job, error)
}
