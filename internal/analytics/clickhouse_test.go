package analytics

import (
	"context"
	"testing"
	"time"

	"promo-orders/internal/config"
	"promo-orders/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

// setupTestClickHouse starts a ClickHouse container and opens a store on it.
func setupTestClickHouse(t *testing.T) (*ClickHouseStore, func()) {
	ctx := context.Background()

	chContainer, err := tcclickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3-alpine",
		tcclickhouse.WithUsername("analytics"),
		tcclickhouse.WithPassword("analytics"),
		tcclickhouse.WithDatabase("analytics"),
	)
	require.NoError(t, err)

	addr, err := chContainer.ConnectionHost(ctx)
	require.NoError(t, err)

	store, err := NewClickHouseStore(ctx, config.ClickHouseConfig{
		Enabled:  true,
		Addr:     addr,
		Database: "analytics",
		Username: "analytics",
		Password: "analytics",
	}, zerolog.Nop())
	require.NoError(t, err)

	cleanup := func() {
		_ = store.Close()
		_ = chContainer.Terminate(ctx)
	}

	return store, cleanup
}

func TestClickHouseStore_WriteOrder(t *testing.T) {
	store, cleanup := setupTestClickHouse(t)
	defer cleanup()

	ctx := context.Background()
	user := &model.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	orderedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	event := func(orderID uuid.UUID) model.OrderEvent {
		return model.OrderEvent{
			OrderID:         orderID,
			UserID:          user.ID,
			OrderAmount:     decimal.NewFromInt(1000),
			DiscountAmount:  decimal.NewFromInt(200),
			FinalAmount:     decimal.NewFromInt(800),
			PromoCode:       "SUMMER2024",
			DiscountPercent: 20,
			OrderedAt:       orderedAt,
		}
	}

	totals := func(t *testing.T) (orders, promoUses uint64) {
		t.Helper()
		row := store.conn.QueryRow(ctx,
			`SELECT sum(total_orders), sum(promo_codes_used) FROM analytics.user_stats WHERE user_id = ?`, user.ID)
		require.NoError(t, row.Scan(&orders, &promoUses))
		return orders, promoUses
	}

	first := event(uuid.New())

	t.Run("Replayed order counts once", func(t *testing.T) {
		require.NoError(t, store.WriteOrder(ctx, first, user))
		require.NoError(t, store.WriteOrder(ctx, first, user))

		orders, promoUses := totals(t)
		assert.Equal(t, uint64(1), orders)
		assert.Equal(t, uint64(1), promoUses)

		var rows uint64
		err := store.conn.QueryRow(ctx,
			`SELECT count() FROM analytics.order_analytics FINAL WHERE order_id = ?`, first.OrderID).Scan(&rows)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rows)
	})

	t.Run("Second order adds to the totals", func(t *testing.T) {
		require.NoError(t, store.WriteOrder(ctx, event(uuid.New()), user))

		orders, promoUses := totals(t)
		assert.Equal(t, uint64(2), orders)
		assert.Equal(t, uint64(2), promoUses)
	})

	t.Run("Promo stats follow the same dedup", func(t *testing.T) {
		var uses uint64
		err := store.conn.QueryRow(ctx,
			`SELECT sum(total_uses) FROM analytics.promo_code_stats WHERE promo_code = 'SUMMER2024'`).Scan(&uses)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), uses)
	})
}

func TestClickHouseStore_WriteUsage(t *testing.T) {
	store, cleanup := setupTestClickHouse(t)
	defer cleanup()

	ctx := context.Background()
	usage := model.PromoUsage{
		ID:              uuid.New(),
		PromoCodeID:     uuid.New(),
		PromoCode:       "SUMMER2024",
		UserID:          uuid.New(),
		OrderID:         uuid.New(),
		OrderAmount:     decimal.NewFromInt(1000),
		DiscountAmount:  decimal.NewFromInt(200),
		FinalAmount:     decimal.NewFromInt(800),
		DiscountPercent: 20,
		UsedAt:          time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.WriteUsage(ctx, usage))
	require.NoError(t, store.WriteUsage(ctx, usage))

	var rows uint64
	err := store.conn.QueryRow(ctx,
		`SELECT count() FROM analytics.promo_code_usage_history FINAL WHERE usage_id = ?`, usage.ID).Scan(&rows)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rows)
}
