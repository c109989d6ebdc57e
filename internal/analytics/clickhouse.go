package analytics

import (
	"context"
	"fmt"
	"time"

	"promo-orders/internal/config"
	"promo-orders/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
)

// Aggregate tables only ever receive deltas; the engine folds them on merge.
// Every insert carries a deduplication token so a replayed sync is dropped by the server.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS %[1]s.order_analytics (
    order_id        UUID,
    user_id         UUID,
    order_date      Date,
    hour            UInt8,
    day_of_week     UInt8,
    month           UInt8,
    order_amount    Decimal(38, 6),
    discount_amount Decimal(38, 6),
    final_amount    Decimal(38, 6),
    has_promo_code  UInt8,
    promo_code      String,
    ordered_at      DateTime64(3, 'UTC'),
    created_at      DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree
ORDER BY (order_date, user_id, order_id)
SETTINGS non_replicated_deduplication_window = 10000`,

	`CREATE TABLE IF NOT EXISTS %[1]s.promo_code_usage_history (
    usage_id         UUID,
    user_id          UUID,
    promo_code       String,
    order_id         UUID,
    order_amount     Decimal(38, 6),
    discount_amount  Decimal(38, 6),
    final_amount     Decimal(38, 6),
    discount_percent UInt8,
    usage_date       DateTime64(3, 'UTC'),
    created_at       DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree
ORDER BY (promo_code, usage_date, usage_id)
SETTINGS non_replicated_deduplication_window = 10000`,

	`CREATE TABLE IF NOT EXISTS %[1]s.user_stats (
    user_id          UUID,
    email            SimpleAggregateFunction(anyLast, String),
    name             SimpleAggregateFunction(anyLast, String),
    total_orders     SimpleAggregateFunction(sum, UInt64),
    total_amount     SimpleAggregateFunction(sum, Decimal(38, 6)),
    total_discount   SimpleAggregateFunction(sum, Decimal(38, 6)),
    promo_codes_used SimpleAggregateFunction(sum, UInt64),
    first_order_date SimpleAggregateFunction(min, DateTime64(3, 'UTC')),
    last_order_date  SimpleAggregateFunction(max, DateTime64(3, 'UTC'))
) ENGINE = AggregatingMergeTree
ORDER BY user_id
SETTINGS non_replicated_deduplication_window = 10000`,

	`CREATE TABLE IF NOT EXISTS %[1]s.promo_code_stats (
    promo_code           String,
    discount_percent     SimpleAggregateFunction(anyLast, UInt8),
    total_uses           SimpleAggregateFunction(sum, UInt64),
    total_discount_given SimpleAggregateFunction(sum, Decimal(38, 6)),
    total_revenue        SimpleAggregateFunction(sum, Decimal(38, 6)),
    first_use_date       SimpleAggregateFunction(min, DateTime64(3, 'UTC')),
    last_use_date        SimpleAggregateFunction(max, DateTime64(3, 'UTC'))
) ENGINE = AggregatingMergeTree
ORDER BY promo_code
SETTINGS non_replicated_deduplication_window = 10000`,
}

// ClickHouseStore writes mirror rows to ClickHouse.
type ClickHouseStore struct {
	conn     driver.Conn
	database string
	logger   zerolog.Logger
}

// NewClickHouseStore connects to ClickHouse and creates the analytics tables.
func NewClickHouseStore(ctx context.Context, cfg config.ClickHouseConfig, logger zerolog.Logger) (*ClickHouseStore, error) {
	logger = logger.With().Str("component", "clickhouse").Logger()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open clickhouse")
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "ping clickhouse")
	}

	s := &ClickHouseStore{conn: conn, database: cfg.Database, logger: logger}
	if err := s.createTables(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info().Str("addr", cfg.Addr).Str("database", cfg.Database).Msg("clickhouse connected")
	return s, nil
}

func (s *ClickHouseStore) createTables(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)); err != nil {
		return errors.Wrap(err, "create analytics database")
	}
	for _, ddl := range tableDDL {
		if err := s.conn.Exec(ctx, fmt.Sprintf(ddl, s.database)); err != nil {
			return errors.Wrap(err, "create analytics table")
		}
	}
	return nil
}

// WriteOrder implements Store.
func (s *ClickHouseStore) WriteOrder(ctx context.Context, ev model.OrderEvent, user *model.User) error {
	token := "order:" + ev.OrderID.String()
	at := ev.OrderedAt.UTC()
	hasPromo := ev.PromoCode != ""

	var promoFlag, promoUses uint64
	if hasPromo {
		promoFlag, promoUses = 1, 1
	}

	err := s.insert(ctx, token,
		`INSERT INTO `+s.database+`.order_analytics
		(order_id, user_id, order_date, hour, day_of_week, month, order_amount, discount_amount, final_amount, has_promo_code, promo_code, ordered_at)`,
		ev.OrderID, ev.UserID, at, uint8(at.Hour()), uint8(at.Weekday()), uint8(at.Month()),
		ev.OrderAmount, ev.DiscountAmount, ev.FinalAmount, uint8(promoFlag), ev.PromoCode, at,
	)
	if err != nil {
		return errors.Wrap(err, "insert order row")
	}

	err = s.insert(ctx, token,
		`INSERT INTO `+s.database+`.user_stats
		(user_id, email, name, total_orders, total_amount, total_discount, promo_codes_used, first_order_date, last_order_date)`,
		ev.UserID, user.Email, user.Name, uint64(1), ev.OrderAmount, ev.DiscountAmount, promoUses, at, at,
	)
	if err != nil {
		return errors.Wrap(err, "insert user stats delta")
	}

	if !hasPromo {
		return nil
	}

	err = s.insert(ctx, token,
		`INSERT INTO `+s.database+`.promo_code_stats
		(promo_code, discount_percent, total_uses, total_discount_given, total_revenue, first_use_date, last_use_date)`,
		ev.PromoCode, uint8(ev.DiscountPercent), uint64(1), ev.DiscountAmount, ev.FinalAmount, at, at,
	)
	if err != nil {
		return errors.Wrap(err, "insert promo code stats delta")
	}

	return nil
}

// WriteUsage implements Store.
func (s *ClickHouseStore) WriteUsage(ctx context.Context, usage model.PromoUsage) error {
	err := s.insert(ctx, "usage:"+usage.ID.String(),
		`INSERT INTO `+s.database+`.promo_code_usage_history
		(usage_id, user_id, promo_code, order_id, order_amount, discount_amount, final_amount, discount_percent, usage_date)`,
		usage.ID, usage.UserID, usage.PromoCode, usage.OrderID,
		usage.OrderAmount, usage.DiscountAmount, usage.FinalAmount, uint8(usage.DiscountPercent), usage.UsedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert usage row")
	}
	return nil
}

func (s *ClickHouseStore) insert(ctx context.Context, token, query string, row ...any) error {
	ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"insert_deduplication_token": token,
	}))

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}
	if err := batch.Append(row...); err != nil {
		_ = batch.Abort()
		return errors.Wrap(err, "append row")
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}
	return nil
}

// Close closes the connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
