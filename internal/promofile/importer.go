package promofile

import (
	"context"
	"errors"
	"fmt"

	"promo-orders/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Registry creates promo codes.
type Registry interface {
	Create(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error)
}

// Summary reports the outcome of an import.
type Summary struct {
	Files       int `json:"files"`
	Definitions int `json:"definitions"`
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Importer loads definition files and creates their codes in the registry.
type Importer struct {
	loader   Loader
	registry Registry
	logger   zerolog.Logger
}

// NewImporter creates a new importer.
func NewImporter(loader Loader, registry Registry, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:   loader,
		registry: registry,
		logger:   logger.With().Str("component", "promo-importer").Logger(),
	}
}

// Import loads all files concurrently, then creates each distinct code once.
// When a code appears in several files the earliest file in paths wins.
// Codes that already exist are skipped; other create errors are counted as
// failed. Only a file that cannot be loaded fails the import.
func (im *Importer) Import(ctx context.Context, paths []string) (*Summary, error) {
	loaded := make([][]Definition, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			defs, err := im.loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			loaded[i] = defs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Files: len(paths)}
	seen := make(map[string]struct{})
	for _, defs := range loaded {
		for _, def := range defs {
			summary.Definitions++

			code := model.NormalizeCode(def.Code)
			if _, dup := seen[code]; dup && code != "" {
				summary.Skipped++
				continue
			}
			seen[code] = struct{}{}

			if err := ctx.Err(); err != nil {
				return summary, err
			}

			_, err := im.registry.Create(ctx, def.Request())
			switch {
			case err == nil:
				summary.Created++
			case errors.Is(err, model.ErrPromoCodeExists):
				summary.Skipped++
			default:
				summary.Failed++
				im.logger.Warn().Err(err).Str("promo_code", code).Msg("failed to import promo code")
			}
		}
	}

	im.logger.Info().
		Int("files", summary.Files).
		Int("definitions", summary.Definitions).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("promo code import finished")

	return summary, nil
}
