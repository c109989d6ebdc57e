package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoUsage records one successful promo code use, tied to exactly one order.
type PromoUsage struct {
	ID              uuid.UUID       `json:"id"`
	PromoCodeID     uuid.UUID       `json:"promoCodeId"`
	UserID          uuid.UUID       `json:"userId"`
	OrderID         uuid.UUID       `json:"orderId"`
	OrderAmount     decimal.Decimal `json:"orderAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	DiscountPercent int             `json:"discountPercent"`
	PromoCode       string          `json:"promoCode"`
	UsedAt          time.Time       `json:"usedAt"`
}

// RecordUsageParams holds the values needed to append a ledger entry.
type RecordUsageParams struct {
	PromoCodeID     uuid.UUID
	UserID          uuid.UUID
	OrderID         uuid.UUID
	OrderAmount     decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	DiscountPercent int
	PromoCode       string
}

// UsagePage is a page of ledger entries ordered by most recent use.
type UsagePage struct {
	History []PromoUsage `json:"history"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	Pages   int          `json:"pages"`
}

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// NormalizePage clamps page and limit to sane values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// PageCount returns the number of pages needed for total items.
func PageCount(total, limit int) int {
	if limit < 1 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
