package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promo-orders/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const promoCodeColumns = `
	id, code, discount_percent, max_usage, max_usage_per_user, valid_from, valid_until,
	status, used_count, total_discount_given, created_at, updated_at,
	(SELECT COUNT(*) FROM promo_code_users u WHERE u.promo_code_id = promo_codes.id)`

// promoCodeRepository implements the PromoCodeRepository interface using PostgreSQL.
type promoCodeRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPromoCodeRepository creates a new PostgreSQL-backed promo code repository.
func NewPromoCodeRepository(pool *pgxpool.Pool, logger zerolog.Logger) PromoCodeRepository {
	return &promoCodeRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "promo_code").Logger(),
	}
}

func scanPromoCode(row pgx.Row) (*model.PromoCode, error) {
	var p model.PromoCode
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.DiscountPercent,
		&p.MaxUsage,
		&p.MaxUsagePerUser,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.Status,
		&p.UsedCount,
		&p.TotalDiscountGiven,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.UniqueUsers,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new promo code.
func (r *promoCodeRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	query := `
		INSERT INTO promo_codes (
			id, code, discount_percent, max_usage, max_usage_per_user, valid_from, valid_until,
			status, used_count, total_discount_given, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		promo.ID,
		promo.Code,
		promo.DiscountPercent,
		promo.MaxUsage,
		promo.MaxUsagePerUser,
		promo.ValidFrom,
		promo.ValidUntil,
		promo.Status,
		promo.CreatedAt,
		promo.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Debug().Str("promo_code", promo.Code).Msg("promo code already exists")
			return model.ErrPromoCodeExists
		}
		r.logger.Error().Err(err).Str("promo_code", promo.Code).Msg("failed to create promo code")
		return fmt.Errorf("failed to create promo code: %w", err)
	}

	r.logger.Debug().
		Str("promo_code", promo.Code).
		Str("promo_code_id", promo.ID.String()).
		Msg("promo code created successfully")

	return nil
}

// GetByCode retrieves a promo code by its normalized code.
func (r *promoCodeRepository) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	query := `SELECT ` + promoCodeColumns + ` FROM promo_codes WHERE code = $1`

	promo, err := scanPromoCode(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("promo_code", code).Msg("promo code not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("promo_code", code).Msg("failed to query promo code")
		return nil, fmt.Errorf("failed to query promo code: %w", err)
	}

	return promo, nil
}

// GetByID retrieves a promo code by ID.
func (r *promoCodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	query := `SELECT ` + promoCodeColumns + ` FROM promo_codes WHERE id = $1`

	promo, err := scanPromoCode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("promo_code_id", id.String()).Msg("failed to query promo code")
		return nil, fmt.Errorf("failed to query promo code: %w", err)
	}

	return promo, nil
}

// List retrieves all promo codes, newest first.
func (r *promoCodeRepository) List(ctx context.Context) ([]model.PromoCode, error) {
	query := `SELECT ` + promoCodeColumns + ` FROM promo_codes ORDER BY created_at DESC, code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query promo codes")
		return nil, fmt.Errorf("failed to query promo codes: %w", err)
	}
	defer rows.Close()

	promos := make([]model.PromoCode, 0)
	for rows.Next() {
		promo, err := scanPromoCode(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan promo code row")
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		promos = append(promos, *promo)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating promo code rows")
		return nil, fmt.Errorf("error iterating promo codes: %w", err)
	}

	return promos, nil
}

const redeemQuery = `
	UPDATE promo_codes
	SET used_count = used_count + 1,
		total_discount_given = total_discount_given + ($2::numeric * discount_percent / 100),
		updated_at = $3
	WHERE code = $1
		AND status = 'active'
		AND used_count < max_usage
		AND (valid_from IS NULL OR valid_from <= $3)
		AND (valid_until IS NULL OR valid_until >= $3)
	RETURNING ` + promoCodeColumns

const redeemUserQuery = `
	INSERT INTO promo_code_users (promo_code_id, user_id, used_count, last_used_at)
	VALUES ($1, $2, 1, $4)
	ON CONFLICT (promo_code_id, user_id) DO UPDATE
	SET used_count = promo_code_users.used_count + 1,
		last_used_at = EXCLUDED.last_used_at
	WHERE promo_code_users.used_count < $3
	RETURNING used_count
`

// Redeem consumes one use of a promo code. The code-level condition and the
// per-user counter are checked by conditional writes in one transaction, so
// concurrent callers can never push either counter past its cap.
func (r *promoCodeRepository) Redeem(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	orderAmount decimal.Decimal,
	now time.Time,
) (*model.PromoCode, error) {
	return r.redeem(ctx, code, userID, orderAmount, now, nil)
}

// RedeemForOrder consumes one use of order's promo code and inserts the order
// with its discount applied, in the same transaction. Nothing is consumed
// unless the order is stored.
func (r *promoCodeRepository) RedeemForOrder(ctx context.Context, order *model.Order, now time.Time) (*model.PromoCode, error) {
	if order.PromoCode == nil {
		return nil, fmt.Errorf("order %s has no promo code", order.ID)
	}

	return r.redeem(ctx, *order.PromoCode, order.UserID, order.Amount, now, func(tx pgx.Tx, promo *model.PromoCode) error {
		discount, _ := model.CalculateDiscount(order.Amount, promo.DiscountPercent)
		order.PromoCodeID = &promo.ID
		order.PromoCode = &promo.Code
		order.SetAmounts(order.Amount, discount)

		if err := insertOrder(ctx, tx, order); err != nil {
			if errors.Is(err, model.ErrOrderExists) {
				return err
			}
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// redeem runs the conditional writes and, when given, within before committing.
func (r *promoCodeRepository) redeem(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	orderAmount decimal.Decimal,
	now time.Time,
	within func(tx pgx.Tx, promo *model.PromoCode) error,
) (*model.PromoCode, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	promo, err := scanPromoCode(tx.QueryRow(ctx, redeemQuery, code, orderAmount, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("promo_code", code).Msg("promo code not redeemable")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("promo_code", code).Msg("failed to redeem promo code")
		return nil, fmt.Errorf("failed to redeem promo code: %w", err)
	}

	var userCount int
	err = tx.QueryRow(ctx, redeemUserQuery, promo.ID, userID, promo.MaxUsagePerUser, now).Scan(&userCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().
				Str("promo_code", code).
				Str("user_id", userID.String()).
				Int("max_usage_per_user", promo.MaxUsagePerUser).
				Msg("per-user usage limit reached")
			return nil, model.ErrPromoLimitExceeded
		}
		r.logger.Error().Err(err).Str("promo_code", code).Msg("failed to record promo code user")
		return nil, fmt.Errorf("failed to record promo code user: %w", err)
	}

	if within != nil {
		if err := within(tx, promo); err != nil {
			if !errors.Is(err, model.ErrOrderExists) {
				r.logger.Error().Err(err).Str("promo_code", code).Msg("failed to complete redemption")
			}
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("promo_code", code).Msg("failed to commit redemption")
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	if userCount == 1 {
		promo.UniqueUsers++
	}

	r.logger.Debug().
		Str("promo_code", code).
		Str("user_id", userID.String()).
		Int("used_count", promo.UsedCount).
		Int("user_used_count", userCount).
		Msg("promo code redeemed")

	return promo, nil
}

// MarkExpired moves an active code to expired.
func (r *promoCodeRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE promo_codes
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		r.logger.Error().Err(err).Str("promo_code_id", id.String()).Msg("failed to mark promo code expired")
		return fmt.Errorf("failed to mark promo code expired: %w", err)
	}

	return nil
}

// ExpireOverdue marks active codes whose validity ended before now as expired.
func (r *promoCodeRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE promo_codes
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND valid_until IS NOT NULL AND valid_until < $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to expire overdue promo codes")
		return 0, fmt.Errorf("failed to expire overdue promo codes: %w", err)
	}

	return tag.RowsAffected(), nil
}
