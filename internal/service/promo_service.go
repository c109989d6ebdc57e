package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// promoService implements PromoService.
type promoService struct {
	promoRepo repository.PromoCodeRepository
	usageRepo repository.UsageRepository
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPromoService creates a new promo code service.
func NewPromoService(
	promoRepo repository.PromoCodeRepository,
	usageRepo repository.UsageRepository,
	logger zerolog.Logger,
) PromoService {
	return &promoService{
		promoRepo: promoRepo,
		usageRepo: usageRepo,
		now:       time.Now,
		logger:    logger.With().Str("service", "promo").Logger(),
	}
}

// Create registers a new promo code.
func (s *promoService) Create(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error) {
	if err := validateCreatePromoRequest(req); err != nil {
		return nil, err
	}

	code := model.NormalizeCode(req.Code)
	if code == "" {
		code = generateCode()
	}

	status := req.Status
	if status == "" {
		status = model.PromoCodeActive
	}

	now := s.now()
	promo := &model.PromoCode{
		ID:                 uuid.New(),
		Code:               code,
		DiscountPercent:    req.DiscountPercent,
		MaxUsage:           req.MaxUsage,
		MaxUsagePerUser:    req.MaxUsagePerUser,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		Status:             status,
		TotalDiscountGiven: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.promoRepo.Create(ctx, promo); err != nil {
		if errors.Is(err, model.ErrPromoCodeExists) {
			s.logger.Warn().Str("promo_code", code).Msg("promo code already exists")
			return nil, err
		}
		s.logger.Error().Err(err).Str("promo_code", code).Msg("failed to create promo code")
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	s.logger.Info().
		Str("promo_code", code).
		Int("discount_percent", promo.DiscountPercent).
		Int("max_usage", promo.MaxUsage).
		Msg("promo code created")

	return promo, nil
}

// EnsureDefault seeds the default promo code when it does not exist yet.
func (s *promoService) EnsureDefault(ctx context.Context) error {
	existing, err := s.promoRepo.GetByCode(ctx, model.DefaultPromoCode)
	if err != nil {
		return fmt.Errorf("failed to look up default promo code: %w", err)
	}
	if existing != nil {
		return nil
	}

	now := s.now()
	until := now.Add(model.DefaultPromoValidity)
	_, err = s.Create(ctx, &model.CreatePromoCodeRequest{
		Code:            model.DefaultPromoCode,
		DiscountPercent: model.DefaultPromoDiscountPercent,
		MaxUsage:        model.DefaultPromoMaxUsage,
		MaxUsagePerUser: model.DefaultPromoMaxUsagePerUser,
		ValidFrom:       &now,
		ValidUntil:      &until,
		Status:          model.PromoCodeActive,
	})
	if errors.Is(err, model.ErrPromoCodeExists) {
		// Another instance seeded it first.
		return nil
	}
	return err
}

// Get retrieves a promo code by code.
func (s *promoService) Get(ctx context.Context, code string) (*model.PromoCode, error) {
	normalized := model.NormalizeCode(code)

	promo, err := s.promoRepo.GetByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo == nil {
		return nil, model.NewDomainError(model.ErrCodePromoCodeNotFound, fmt.Sprintf("Promo code %s not found", normalized))
	}

	return promo, nil
}

// GetByID retrieves a promo code by ID.
func (s *promoService) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	promo, err := s.promoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo == nil {
		return nil, model.ErrPromoCodeNotFound
	}

	return promo, nil
}

// List retrieves all promo codes.
func (s *promoService) List(ctx context.Context) ([]model.PromoCode, error) {
	promos, err := s.promoRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	return promos, nil
}

// Validate runs the read-only checks in order: existence, status, validity
// window, global cap, then the per-user cap. Observing an elapsed validity
// window moves the code to expired.
func (s *promoService) Validate(ctx context.Context, code string, userID uuid.UUID) (*model.ValidationResult, error) {
	promo, err := s.Get(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrPromoCodeNotFound) {
			return &model.ValidationResult{Message: err.Error()}, nil
		}
		return nil, err
	}

	now := s.now()
	if reason := s.unavailableReason(promo, now); reason != "" {
		if promo.Status == model.PromoCodeActive && promo.Expired(now) {
			if err := s.promoRepo.MarkExpired(ctx, promo.ID); err != nil {
				return nil, fmt.Errorf("failed to expire promo code: %w", err)
			}
			s.logger.Info().Str("promo_code", promo.Code).Msg("promo code expired")
		}
		return &model.ValidationResult{Message: reason}, nil
	}

	used, err := s.usageRepo.CountByUser(ctx, promo.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count promo code usage: %w", err)
	}
	if used >= promo.MaxUsagePerUser {
		return &model.ValidationResult{Message: model.ErrPromoLimitExceeded.Message}, nil
	}

	return &model.ValidationResult{
		IsValid:         true,
		DiscountPercent: promo.DiscountPercent,
	}, nil
}

// Apply previews the discount for amount.
func (s *promoService) Apply(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.ApplyResult, error) {
	if !amount.IsPositive() {
		return nil, model.NewValidationError("Order amount must be greater than 0")
	}

	validation, err := s.Validate(ctx, code, userID)
	if err != nil {
		return nil, err
	}

	if !validation.IsValid {
		return &model.ApplyResult{
			OriginalAmount: amount,
			DiscountAmount: decimal.Zero,
			FinalAmount:    amount,
			Message:        validation.Message,
		}, nil
	}

	discount, final := model.CalculateDiscount(amount, validation.DiscountPercent)
	return &model.ApplyResult{
		Success:         true,
		OriginalAmount:  amount,
		DiscountAmount:  discount,
		FinalAmount:     final,
		DiscountPercent: validation.DiscountPercent,
	}, nil
}

// Redeem atomically consumes one use of the code for userID.
func (s *promoService) Redeem(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.Redemption, error) {
	normalized := model.NormalizeCode(code)
	now := s.now()

	promo, err := s.promoRepo.Redeem(ctx, normalized, userID, amount, now)
	return s.redemption(ctx, normalized, userID, amount, now, promo, err)
}

// RedeemForOrder redeems the order's promo code and stores the order in one step.
func (s *promoService) RedeemForOrder(ctx context.Context, order *model.Order) (*model.Redemption, error) {
	if order.PromoCode == nil {
		return nil, model.NewValidationError("Order has no promo code")
	}
	normalized := model.NormalizeCode(*order.PromoCode)
	order.PromoCode = &normalized
	now := s.now()

	promo, err := s.promoRepo.RedeemForOrder(ctx, order, now)
	return s.redemption(ctx, normalized, order.UserID, order.Amount, now, promo, err)
}

// redemption turns a repository redeem outcome into a Redemption or a
// specific domain error.
func (s *promoService) redemption(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	amount decimal.Decimal,
	now time.Time,
	promo *model.PromoCode,
	err error,
) (*model.Redemption, error) {
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPromoLimitExceeded):
			s.logger.Warn().
				Str("promo_code", code).
				Str("user_id", userID.String()).
				Msg("per-user promo code limit reached")
			return nil, err
		case errors.Is(err, model.ErrOrderExists):
			return nil, err
		}
		return nil, fmt.Errorf("failed to redeem promo code: %w", err)
	}

	if promo == nil {
		reason, err := s.redeemFailureReason(ctx, code, now)
		if err != nil {
			return nil, err
		}
		s.logger.Warn().
			Str("promo_code", code).
			Str("user_id", userID.String()).
			Str("reason", reason).
			Msg("promo code not redeemable")
		return nil, model.NewNotAvailableError(reason)
	}

	discount, final := model.CalculateDiscount(amount, promo.DiscountPercent)

	s.logger.Info().
		Str("promo_code", promo.Code).
		Str("user_id", userID.String()).
		Int("used_count", promo.UsedCount).
		Str("discount_amount", discount.String()).
		Msg("promo code redeemed")

	return &model.Redemption{
		Success:         true,
		PromoCodeID:     promo.ID,
		Code:            promo.Code,
		DiscountAmount:  discount,
		FinalAmount:     final,
		DiscountPercent: promo.DiscountPercent,
	}, nil
}

// Stats returns derived usage figures for a code.
func (s *promoService) Stats(ctx context.Context, code string) (*model.PromoCodeStats, error) {
	promo, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	return &model.PromoCodeStats{
		Code:               promo.Code,
		DiscountPercent:    promo.DiscountPercent,
		UsedCount:          promo.UsedCount,
		TotalDiscountGiven: promo.TotalDiscountGiven,
		UniqueUsers:        promo.UniqueUsers,
		UsageLimit:         promo.MaxUsage,
		RemainingUses:      promo.RemainingUses(),
	}, nil
}

// ExpireOverdue marks active codes past their validity window as expired.
func (s *promoService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.promoRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire promo codes: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("expired overdue promo codes")
	}
	return n, nil
}

// redeemFailureReason re-reads a code that failed the conditional update to
// name the condition that blocked it.
func (s *promoService) redeemFailureReason(ctx context.Context, code string, now time.Time) (string, error) {
	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo == nil {
		return "Invalid promo code", nil
	}
	if reason := s.unavailableReason(promo, now); reason != "" {
		return reason, nil
	}
	return model.ErrPromoNotAvailable.Message, nil
}

func (s *promoService) unavailableReason(promo *model.PromoCode, now time.Time) string {
	switch {
	case promo.Status != model.PromoCodeActive:
		return fmt.Sprintf("Promo code is %s", promo.Status)
	case promo.NotYetValid(now):
		return "Promo code is not yet valid"
	case promo.Expired(now):
		return "Promo code has expired"
	case promo.Exhausted():
		return "Promo code usage limit reached"
	}
	return ""
}

func validateCreatePromoRequest(req *model.CreatePromoCodeRequest) error {
	if req == nil {
		return model.NewValidationError("Promo code request is required")
	}
	if req.DiscountPercent < 1 || req.DiscountPercent > 100 {
		return model.NewValidationError("Discount percent must be between 1 and 100")
	}
	if req.MaxUsage < 1 || req.MaxUsagePerUser < 1 {
		return model.NewValidationError("Usage limits must be at least 1")
	}
	if req.Status != "" && !req.Status.Valid() {
		return model.NewValidationError(fmt.Sprintf("Invalid promo code status: %s", req.Status))
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && req.ValidUntil.Before(*req.ValidFrom) {
		return model.NewValidationError("validUntil must not be before validFrom")
	}
	return nil
}

func generateCode() string {
	return "PROMO" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
