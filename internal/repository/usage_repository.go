package repository

import (
	"context"
	"errors"
	"fmt"

	"promo-orders/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const usageColumns = `
	id, promo_code_id, user_id, order_id, order_amount, discount_amount, final_amount,
	discount_percent, promo_code, used_at`

// usageRepository implements the UsageRepository interface using PostgreSQL.
type usageRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewUsageRepository creates a new PostgreSQL-backed promo usage ledger.
func NewUsageRepository(pool *pgxpool.Pool, logger zerolog.Logger) UsageRepository {
	return &usageRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "promo_usage").Logger(),
	}
}

func scanUsage(row pgx.Row) (*model.PromoUsage, error) {
	var u model.PromoUsage
	err := row.Scan(
		&u.ID,
		&u.PromoCodeID,
		&u.UserID,
		&u.OrderID,
		&u.OrderAmount,
		&u.DiscountAmount,
		&u.FinalAmount,
		&u.DiscountPercent,
		&u.PromoCode,
		&u.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create appends a usage record unless one already exists for the order.
func (r *usageRepository) Create(ctx context.Context, usage *model.PromoUsage) (*model.PromoUsage, bool, error) {
	query := `
		INSERT INTO promo_usages (` + usageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING ` + usageColumns

	record, err := scanUsage(r.pool.QueryRow(ctx, query,
		usage.ID,
		usage.PromoCodeID,
		usage.UserID,
		usage.OrderID,
		usage.OrderAmount,
		usage.DiscountAmount,
		usage.FinalAmount,
		usage.DiscountPercent,
		usage.PromoCode,
		usage.UsedAt,
	))
	if err == nil {
		r.logger.Debug().
			Str("usage_id", record.ID.String()).
			Str("order_id", record.OrderID.String()).
			Msg("promo usage recorded")
		return record, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Str("order_id", usage.OrderID.String()).Msg("failed to record promo usage")
		return nil, false, fmt.Errorf("failed to record promo usage: %w", err)
	}

	// A concurrent or earlier writer won; hand back its record.
	existing, err := r.GetByOrderID(ctx, usage.OrderID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("failed to record promo usage: conflicting record for order %s", usage.OrderID)
	}

	return existing, false, nil
}

// GetByOrderID retrieves the usage record for an order.
func (r *usageRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.PromoUsage, error) {
	query := `SELECT ` + usageColumns + ` FROM promo_usages WHERE order_id = $1`

	record, err := scanUsage(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query promo usage")
		return nil, fmt.Errorf("failed to query promo usage: %w", err)
	}

	return record, nil
}

// CountByUser counts usage records for a promo code and user.
func (r *usageRepository) CountByUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM promo_usages WHERE promo_code_id = $1 AND user_id = $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, promoCodeID, userID).Scan(&count); err != nil {
		r.logger.Error().
			Err(err).
			Str("promo_code_id", promoCodeID.String()).
			Str("user_id", userID.String()).
			Msg("failed to count promo usage")
		return 0, fmt.Errorf("failed to count promo usage: %w", err)
	}

	return count, nil
}

// ListByCode retrieves usage records for a code, most recent first.
func (r *usageRepository) ListByCode(ctx context.Context, code string, limit, offset int) ([]model.PromoUsage, int, error) {
	return r.list(ctx, "promo_code = $1", code, limit, offset)
}

// ListByUser retrieves usage records for a user, most recent first.
func (r *usageRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PromoUsage, int, error) {
	return r.list(ctx, "user_id = $1", userID, limit, offset)
}

func (r *usageRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]model.PromoUsage, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM promo_usages WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, arg).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count promo usage history")
		return nil, 0, fmt.Errorf("failed to count promo usage history: %w", err)
	}

	query := `
		SELECT ` + usageColumns + `
		FROM promo_usages
		WHERE ` + where + `
		ORDER BY used_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, arg, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query promo usage history")
		return nil, 0, fmt.Errorf("failed to query promo usage history: %w", err)
	}
	defer rows.Close()

	history := make([]model.PromoUsage, 0, limit)
	for rows.Next() {
		record, err := scanUsage(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan promo usage row")
			return nil, 0, fmt.Errorf("failed to scan promo usage: %w", err)
		}
		history = append(history, *record)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating promo usage rows")
		return nil, 0, fmt.Errorf("error iterating promo usage: %w", err)
	}

	return history, total, nil
}

// ExistsForOrder reports whether the code was used for the order.
func (r *usageRepository) ExistsForOrder(ctx context.Context, orderID uuid.UUID, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM promo_usages WHERE order_id = $1 AND promo_code = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, orderID, code).Scan(&exists); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to check promo usage")
		return false, fmt.Errorf("failed to check promo usage: %w", err)
	}

	return exists, nil
}
