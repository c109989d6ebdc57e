package handler

import (
	"context"

	"promo-orders/internal/model"
	"promo-orders/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.EnqueueResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EnqueueResult), args.Error(1)
}

func (m *MockOrderService) CreateOrderDirect(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ProcessOrderJob(ctx context.Context, job *queue.Job) (any, error) {
	args := m.Called(ctx, job)
	return args.Get(0), args.Error(1)
}

func (m *MockOrderService) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatus, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.JobStatus), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*model.OrderPage, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderService) GetAllOrders(ctx context.Context, filter model.OrderFilter, page, limit int) (*model.OrderPage, error) {
	args := m.Called(ctx, filter, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderPage), args.Error(1)
}

func (m *MockOrderService) GetUserStats(ctx context.Context, userID uuid.UUID) (*model.UserOrderStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserOrderStats), args.Error(1)
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
	return m.Called(ctx).Error(0)
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
