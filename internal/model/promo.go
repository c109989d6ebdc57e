package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCodeStatus represents the lifecycle state of a promo code.
type PromoCodeStatus string

const (
	PromoCodeActive   PromoCodeStatus = "active"
	PromoCodeInactive PromoCodeStatus = "inactive"
	PromoCodeExpired  PromoCodeStatus = "expired"
)

// Valid reports whether s is a known status.
func (s PromoCodeStatus) Valid() bool {
	switch s {
	case PromoCodeActive, PromoCodeInactive, PromoCodeExpired:
		return true
	}
	return false
}

// Default promo code seeded on startup when absent.
const (
	DefaultPromoCode            = "SUMMER2024"
	DefaultPromoDiscountPercent = 20
	DefaultPromoMaxUsage        = 100
	DefaultPromoMaxUsagePerUser = 10
	DefaultPromoValidity        = 30 * 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// PromoCode represents a discount code with global and per-user usage caps.
type PromoCode struct {
	ID                 uuid.UUID       `json:"id"`
	Code               string          `json:"code"`
	DiscountPercent    int             `json:"discountPercent"`
	MaxUsage           int             `json:"maxUsage"`
	MaxUsagePerUser    int             `json:"maxUsagePerUser"`
	ValidFrom          *time.Time      `json:"validFrom,omitempty"`
	ValidUntil         *time.Time      `json:"validUntil,omitempty"`
	Status             PromoCodeStatus `json:"status"`
	UsedCount          int             `json:"usedCount"`
	TotalDiscountGiven decimal.Decimal `json:"totalDiscountGiven"`
	UniqueUsers        int             `json:"uniqueUsers"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NotYetValid reports whether the validity window has not started at now.
func (p *PromoCode) NotYetValid(now time.Time) bool {
	return p.ValidFrom != nil && now.Before(*p.ValidFrom)
}

// Expired reports whether the validity window has ended at now.
func (p *PromoCode) Expired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

// Exhausted reports whether the global usage cap has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.UsedCount >= p.MaxUsage
}

// RemainingUses returns how many redemptions are left under the global cap.
func (p *PromoCode) RemainingUses() int {
	return max(p.MaxUsage-p.UsedCount, 0)
}

// NormalizeCode trims and uppercases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CalculateDiscount returns the discount and final amount for amount at percent.
// No rounding is applied.
func CalculateDiscount(amount decimal.Decimal, percent int) (discount, final decimal.Decimal) {
	discount = amount.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)
	return discount, amount.Sub(discount)
}

// CreatePromoCodeRequest represents the payload for creating a promo code.
type CreatePromoCodeRequest struct {
	Code            string          `json:"code,omitempty" validate:"omitempty,min=4,max=50"`
	DiscountPercent int             `json:"discountPercent" validate:"required,min=1,max=100"`
	MaxUsage        int             `json:"maxUsage" validate:"required,min=1"`
	MaxUsagePerUser int             `json:"maxUsagePerUser" validate:"required,min=1"`
	ValidFrom       *time.Time      `json:"validFrom,omitempty"`
	ValidUntil      *time.Time      `json:"validUntil,omitempty"`
	Status          PromoCodeStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive expired"`
}

// ValidatePromoCodeRequest represents a read-only promo code check.
type ValidatePromoCodeRequest struct {
	Code   string `json:"code" validate:"required,min=4,max=50"`
	UserID string `json:"userId" validate:"required,uuid"`
}

// ApplyPromoCodeRequest represents a discount preview request.
type ApplyPromoCodeRequest struct {
	Code        string          `json:"code" validate:"required,min=4,max=50"`
	UserID      string          `json:"userId" validate:"required,uuid"`
	OrderAmount decimal.Decimal `json:"orderAmount" validate:"gt=0"`
}

// ValidationResult is the outcome of a read-only promo code check.
type ValidationResult struct {
	IsValid         bool   `json:"isValid"`
	DiscountPercent int    `json:"discountPercent,omitempty"`
	Message         string `json:"message,omitempty"`
}

// ApplyResult is a discount preview computed without redeeming the code.
type ApplyResult struct {
	Success         bool            `json:"success"`
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	DiscountPercent int             `json:"discountPercent"`
	Message         string          `json:"message,omitempty"`
}

// Redemption is the result of atomically consuming one use of a promo code.
type Redemption struct {
	Success         bool            `json:"success"`
	PromoCodeID     uuid.UUID       `json:"promoCodeId"`
	Code            string          `json:"code"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	DiscountPercent int             `json:"discountPercent"`
}

// PromoCodeStats contains derived usage figures for a promo code.
type PromoCodeStats struct {
	Code               string          `json:"code"`
	DiscountPercent    int             `json:"discountPercent"`
	UsedCount          int             `json:"usedCount"`
	TotalDiscountGiven decimal.Decimal `json:"totalDiscountGiven"`
	UniqueUsers        int             `json:"uniqueUsers"`
	UsageLimit         int             `json:"usageLimit"`
	RemainingUses      int             `json:"remainingUses"`
}
