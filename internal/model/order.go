package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPayed     OrderStatus = "payed"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// orderNamespace scopes order ids derived from request ids.
var orderNamespace = uuid.MustParse("6f1c1e0a-3d55-4f0e-9a57-5b8f3c1d2e47")

// MaxRequestIDLength bounds caller-supplied request ids.
const MaxRequestIDLength = 128

// ScopedRequestID binds a caller-supplied request id to the user placing the
// order, so two users can never share an order through the same key.
func ScopedRequestID(userID uuid.UUID, requestID string) string {
	return userID.String() + ":" + requestID
}

// OrderIDForRequest derives a stable order id from a request id, so retries of
// the same request resolve to the same order.
func OrderIDForRequest(requestID string) uuid.UUID {
	return uuid.NewSHA1(orderNamespace, []byte(requestID))
}

// Order represents a placed order.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	RequestID      string          `json:"requestId"`
	UserID         uuid.UUID       `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	PromoCodeID    *uuid.UUID      `json:"promoCodeId,omitempty"`
	PromoCode      *string         `json:"promoCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Recalculate sets FinalAmount from Amount and DiscountAmount.
func (o *Order) Recalculate() {
	o.FinalAmount = o.Amount.Sub(o.DiscountAmount)
}

// SetAmounts updates the amount and discount and keeps FinalAmount in step.
func (o *Order) SetAmounts(amount, discount decimal.Decimal) {
	o.Amount = amount
	o.DiscountAmount = discount
	o.Recalculate()
}

// CreateOrderRequest represents the payload for creating an order.
type CreateOrderRequest struct {
	UserID    string          `json:"userId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	PromoCode string          `json:"promoCode,omitempty" validate:"omitempty,min=4,max=50"`
	RequestID string          `json:"requestId,omitempty" validate:"omitempty,max=128"`
}

// OrderJobData is the queued payload for one order-creation request.
type OrderJobData struct {
	UserID    uuid.UUID       `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	PromoCode string          `json:"promoCode,omitempty"`
	RequestID string          `json:"requestId"`
}

// SameRequest reports whether two payloads describe the same order.
func (d OrderJobData) SameRequest(other OrderJobData) bool {
	return d.UserID == other.UserID &&
		d.Amount.Equal(other.Amount) &&
		d.PromoCode == other.PromoCode &&
		d.RequestID == other.RequestID
}

// MatchesRequest reports whether the order was placed for the payload.
func (o *Order) MatchesRequest(d OrderJobData) bool {
	code := ""
	if o.PromoCode != nil {
		code = *o.PromoCode
	}
	return o.UserID == d.UserID &&
		o.Amount.Equal(d.Amount) &&
		code == d.PromoCode &&
		o.RequestID == d.RequestID
}

// OrderFilter narrows an order listing. Zero values do not filter.
type OrderFilter struct {
	UserID *uuid.UUID
	From   *time.Time
	To     *time.Time
}

// EnqueueResult is returned when an order request has been queued.
type EnqueueResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobStatus reports the state of a queued order job.
type JobStatus struct {
	JobID        string `json:"jobId"`
	Status       string `json:"status"`
	Result       *Order `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
	Progress     int    `json:"progress"`
	AttemptsMade int    `json:"attemptsMade"`
}

// OrderPage is a page of a user's orders.
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
}

// UserOrderStats aggregates a user's orders.
type UserOrderStats struct {
	UserID          uuid.UUID       `json:"userId"`
	TotalOrders     int             `json:"totalOrders"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TotalDiscount   decimal.Decimal `json:"totalDiscount"`
	TotalFinal      decimal.Decimal `json:"totalFinal"`
	OrdersWithPromo int             `json:"ordersWithPromo"`
}
