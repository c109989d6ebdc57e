package service

import (
	"context"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockPromoCodeRepository is a mock implementation of PromoCodeRepository.
type MockPromoCodeRepository struct {
	mock.Mock
}

func (m *MockPromoCodeRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockPromoCodeRepository) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoCodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoCodeRepository) List(ctx context.Context) ([]model.PromoCode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PromoCode), args.Error(1)
}

func (m *MockPromoCodeRepository) Redeem(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal, now time.Time) (*model.PromoCode, error) {
	args := m.Called(ctx, code, userID, orderAmount, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoCodeRepository) RedeemForOrder(ctx context.Context, order *model.Order, now time.Time) (*model.PromoCode, error) {
	args := m.Called(ctx, order, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoCodeRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPromoCodeRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockUsageRepository is a mock implementation of UsageRepository.
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Create(ctx context.Context, usage *model.PromoUsage) (*model.PromoUsage, bool, error) {
	args := m.Called(ctx, usage)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.PromoUsage), args.Bool(1), args.Error(2)
}

func (m *MockUsageRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.PromoUsage, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoUsage), args.Error(1)
}

func (m *MockUsageRepository) CountByUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, promoCodeID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUsageRepository) ListByCode(ctx context.Context, code string, limit, offset int) ([]model.PromoUsage, int, error) {
	args := m.Called(ctx, code, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.PromoUsage), args.Int(1), args.Error(2)
}

func (m *MockUsageRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PromoUsage, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.PromoUsage), args.Int(1), args.Error(2)
}

func (m *MockUsageRepository) ExistsForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, orderID, code)
	return args.Bool(0), args.Error(1)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Order, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) List(ctx context.Context, filter model.OrderFilter, limit, offset int) ([]model.Order, int, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*model.UserOrderStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserOrderStats), args.Error(1)
}

// MockMirror is a mock implementation of AnalyticsMirror.
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) SyncOrder(ctx context.Context, ev model.OrderEvent) {
	m.Called(ctx, ev)
}

func (m *MockMirror) SyncUsage(ctx context.Context, usage model.PromoUsage) {
	m.Called(ctx, usage)
}

// MockJobQueue is a mock implementation of JobQueue.
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Add(ctx context.Context, name string, data any, opts queue.JobOptions) (*queue.Job, error) {
	args := m.Called(ctx, name, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

func (m *MockJobQueue) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

// MockPromoService is a mock implementation of PromoService.
type MockPromoService struct {
	mock.Mock
}

func (m *MockPromoService) Create(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) EnsureDefault(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPromoService) Get(ctx context.Context, code string) (*model.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *MockPromoService) List(ctx context.Context) ([]model.PromoCode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PromoCode), args.Error(1)
}

func (m *MockPromoService) Validate(ctx context.Context, code string, userID uuid.UUID) (*model.ValidationResult, error) {
	args := m.Called(ctx, code, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func (m *MockPromoService) Apply(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.ApplyResult, error) {
	args := m.Called(ctx, code, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApplyResult), args.Error(1)
}

func (m *MockPromoService) Redeem(ctx context.Context, code string, userID uuid.UUID, amount decimal.Decimal) (*model.Redemption, error) {
	args := m.Called(ctx, code, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func (m *MockPromoService) RedeemForOrder(ctx context.Context, order *model.Order) (*model.Redemption, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func (m *MockPromoService) Stats(ctx context.Context, code string) (*model.PromoCodeStats, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCodeStats), args.Error(1)
}

func (m *MockPromoService) ExpireOverdue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockUsageService is a mock implementation of UsageService.
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Record(ctx context.Context, params model.RecordUsageParams) (*model.PromoUsage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoUsage), args.Error(1)
}

func (m *MockUsageService) HistoryByCode(ctx context.Context, code string, page, limit int) (*model.UsagePage, error) {
	args := m.Called(ctx, code, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsagePage), args.Error(1)
}

func (m *MockUsageService) HistoryByUser(ctx context.Context, userID uuid.UUID, page, limit int) (*model.UsagePage, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsagePage), args.Error(1)
}

func (m *MockUsageService) CountForUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, promoCodeID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUsageService) UsedForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, orderID, code)
	return args.Bool(0), args.Error(1)
}
