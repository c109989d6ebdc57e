package analytics

import (
	"context"

	"promo-orders/internal/model"
)

// Store persists mirror rows in the analytics warehouse.
// Writes must be safe to replay for the same order or usage.
type Store interface {
	// WriteOrder appends the order row and the per-user and per-code aggregate deltas.
	WriteOrder(ctx context.Context, ev model.OrderEvent, user *model.User) error

	// WriteUsage appends a promo code usage row.
	WriteUsage(ctx context.Context, usage model.PromoUsage) error

	Close() error
}

// NopStore discards all writes. It is used when the warehouse is disabled.
type NopStore struct{}

func (NopStore) WriteOrder(context.Context, model.OrderEvent, *model.User) error { return nil }
func (NopStore) WriteUsage(context.Context, model.PromoUsage) error              { return nil }
func (NopStore) Close() error                                                    { return nil }
