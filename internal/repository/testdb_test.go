package repository

import (
	"context"
	"testing"
	"time"

	"promo-orders/db"
	"promo-orders/internal/database"
	"promo-orders/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and applies the application schema.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create connection pool with decimal support
	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolConfig.AfterConnect = database.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	// Create schema
	_, err = pool.Exec(ctx, db.Schema)
	require.NoError(t, err)

	// Cleanup function
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// seedPromoCode inserts a promo code with the given caps, valid for the next day.
func seedPromoCode(t *testing.T, repo PromoCodeRepository, code string, percent, maxUsage, maxPerUser int) *model.PromoCode {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	from := now.Add(-time.Hour)
	until := now.Add(24 * time.Hour)

	promo := &model.PromoCode{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: percent,
		MaxUsage:        maxUsage,
		MaxUsagePerUser: maxPerUser,
		ValidFrom:       &from,
		ValidUntil:      &until,
		Status:          model.PromoCodeActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.Create(context.Background(), promo))
	return promo
}

// seedOrder inserts a completed order for userID.
func seedOrder(t *testing.T, repo OrderRepository, userID uuid.UUID, amount, discount string, promo *model.PromoCode, createdAt time.Time) *model.Order {
	t.Helper()

	requestID := "order_" + uuid.NewString()
	order := &model.Order{
		ID:        model.OrderIDForRequest(requestID),
		RequestID: requestID,
		UserID:    userID,
		Status:    model.OrderCompleted,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	order.SetAmounts(decimal.RequireFromString(amount), decimal.RequireFromString(discount))
	if promo != nil {
		order.PromoCodeID = &promo.ID
		order.PromoCode = &promo.Code
	}

	require.NoError(t, repo.Create(context.Background(), order))
	return order
}
