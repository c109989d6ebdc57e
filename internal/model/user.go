package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is a read-only view of an entry in the user directory.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderEvent is a committed order replayed into the analytics mirror.
type OrderEvent struct {
	OrderID         uuid.UUID       `json:"orderId"`
	UserID          uuid.UUID       `json:"userId"`
	OrderAmount     decimal.Decimal `json:"orderAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	PromoCode       string          `json:"promoCode,omitempty"`
	DiscountPercent int             `json:"discountPercent,omitempty"`
	OrderedAt       time.Time       `json:"orderedAt"`
}

// NewOrderEvent builds the mirror event for a persisted order.
func NewOrderEvent(order *Order, discountPercent int) OrderEvent {
	ev := OrderEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		OrderAmount:     order.Amount,
		DiscountAmount:  order.DiscountAmount,
		FinalAmount:     order.FinalAmount,
		DiscountPercent: discountPercent,
		OrderedAt:       order.CreatedAt,
	}
	if order.PromoCode != nil {
		ev.PromoCode = *order.PromoCode
	}
	return ev
}
