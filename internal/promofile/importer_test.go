package promofile

import (
	"context"
	"errors"
	"testing"

	"promo-orders/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Create(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func withCode(code string) any {
	return mock.MatchedBy(func(req *model.CreatePromoCodeRequest) bool { return req.Code == code })
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()

	loader := new(mockLoader)
	loader.On("Load", mock.Anything, "a.gz").Return([]Definition{
		{Code: "ALPHA10", DiscountPercent: 10, MaxUsage: 10, MaxUsagePerUser: 1},
		{Code: "BETA20", DiscountPercent: 20, MaxUsage: 10, MaxUsagePerUser: 1},
	}, nil)
	loader.On("Load", mock.Anything, "b.gz").Return([]Definition{
		{Code: "alpha10", DiscountPercent: 50, MaxUsage: 10, MaxUsagePerUser: 1},
		{Code: "GAMMA30", DiscountPercent: 30, MaxUsage: 10, MaxUsagePerUser: 1},
		{Code: "DELTA40", DiscountPercent: 40, MaxUsage: 10, MaxUsagePerUser: 1},
	}, nil)

	registry := new(mockRegistry)
	registry.On("Create", ctx, mock.MatchedBy(func(req *model.CreatePromoCodeRequest) bool {
		return req.Code == "ALPHA10" && req.DiscountPercent == 10
	})).Return(&model.PromoCode{Code: "ALPHA10"}, nil).Once()
	registry.On("Create", ctx, withCode("BETA20")).Return(nil, model.ErrPromoCodeExists).Once()
	registry.On("Create", ctx, withCode("GAMMA30")).Return(&model.PromoCode{Code: "GAMMA30"}, nil).Once()
	registry.On("Create", ctx, withCode("DELTA40")).Return(nil, errors.New("connection reset")).Once()

	summary, err := NewImporter(loader, registry, zerolog.Nop()).Import(ctx, []string{"a.gz", "b.gz"})
	require.NoError(t, err)

	assert.Equal(t, &Summary{Files: 2, Definitions: 5, Created: 2, Skipped: 2, Failed: 1}, summary)
	registry.AssertExpectations(t)
}

func TestImporter_LoadFailure(t *testing.T) {
	loader := new(mockLoader)
	loader.On("Load", mock.Anything, "a.gz").Return([]Definition{{Code: "ALPHA10"}}, nil)
	loader.On("Load", mock.Anything, "broken.gz").Return(nil, errors.New("unexpected EOF"))

	registry := new(mockRegistry)

	summary, err := NewImporter(loader, registry, zerolog.Nop()).Import(context.Background(), []string{"a.gz", "broken.gz"})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "failed to load broken.gz")
	registry.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
