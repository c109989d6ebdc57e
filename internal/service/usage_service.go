package service

import (
	"context"
	"fmt"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// usageService implements UsageService.
type usageService struct {
	usageRepo repository.UsageRepository
	mirror    AnalyticsMirror
	now       func() time.Time
	logger    zerolog.Logger
}

// NewUsageService creates a new promo usage ledger service.
func NewUsageService(usageRepo repository.UsageRepository, mirror AnalyticsMirror, logger zerolog.Logger) UsageService {
	return &usageService{
		usageRepo: usageRepo,
		mirror:    mirror,
		now:       time.Now,
		logger:    logger.With().Str("service", "usage").Logger(),
	}
}

// Record appends a usage entry for an order. Recording the same order twice
// returns the first entry and does not sync it again.
func (s *usageService) Record(ctx context.Context, params model.RecordUsageParams) (*model.PromoUsage, error) {
	existing, err := s.usageRepo.GetByOrderID(ctx, params.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up promo usage: %w", err)
	}
	if existing != nil {
		s.logger.Debug().Str("order_id", params.OrderID.String()).Msg("promo usage already recorded")
		return existing, nil
	}

	usage := &model.PromoUsage{
		ID:              uuid.New(),
		PromoCodeID:     params.PromoCodeID,
		UserID:          params.UserID,
		OrderID:         params.OrderID,
		OrderAmount:     params.OrderAmount,
		DiscountAmount:  params.DiscountAmount,
		FinalAmount:     params.FinalAmount,
		DiscountPercent: params.DiscountPercent,
		PromoCode:       params.PromoCode,
		UsedAt:          s.now(),
	}

	record, created, err := s.usageRepo.Create(ctx, usage)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", params.OrderID.String()).Msg("failed to record promo usage")
		return nil, fmt.Errorf("failed to record promo usage: %w", err)
	}

	if created {
		s.logger.Info().
			Str("order_id", record.OrderID.String()).
			Str("promo_code", record.PromoCode).
			Str("user_id", record.UserID.String()).
			Msg("promo usage recorded")
		s.mirror.SyncUsage(ctx, *record)
	}

	return record, nil
}

// HistoryByCode pages through usages of a code.
func (s *usageService) HistoryByCode(ctx context.Context, code string, page, limit int) (*model.UsagePage, error) {
	page, limit = model.NormalizePage(page, limit)

	history, total, err := s.usageRepo.ListByCode(ctx, model.NormalizeCode(code), limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code history: %w", err)
	}

	return newUsagePage(history, total, page, limit), nil
}

// HistoryByUser pages through a user's usages.
func (s *usageService) HistoryByUser(ctx context.Context, userID uuid.UUID, page, limit int) (*model.UsagePage, error) {
	page, limit = model.NormalizePage(page, limit)

	history, total, err := s.usageRepo.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user promo history: %w", err)
	}

	return newUsagePage(history, total, page, limit), nil
}

// CountForUser counts how often userID has used a code.
func (s *usageService) CountForUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	n, err := s.usageRepo.CountByUser(ctx, promoCodeID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count promo usage: %w", err)
	}
	return n, nil
}

// UsedForOrder reports whether the code was used for the order.
func (s *usageService) UsedForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error) {
	ok, err := s.usageRepo.ExistsForOrder(ctx, orderID, model.NormalizeCode(code))
	if err != nil {
		return false, fmt.Errorf("failed to check promo usage: %w", err)
	}
	return ok, nil
}

func newUsagePage(history []model.PromoUsage, total, page, limit int) *model.UsagePage {
	if history == nil {
		history = []model.PromoUsage{}
	}
	return &model.UsagePage{
		History: history,
		Total:   total,
		Page:    page,
		Pages:   model.PageCount(total, limit),
	}
}
