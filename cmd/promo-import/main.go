package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promo-orders/internal/config"
	"promo-orders/internal/database"
	"promo-orders/internal/promofile"
	"promo-orders/internal/repository"
	"promo-orders/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	files := flag.String("files", "", "comma-separated definition files to import")
	sample := flag.String("sample", "", "write a sample definition file to this path and exit")
	count := flag.Int("count", 100, "number of definitions in the sample file")
	flag.Parse()

	if *sample != "" {
		if *count < 1 {
			return errors.New("count must be at least 1")
		}
		if err := promofile.WriteFile(*sample, promofile.Sample(*count, time.Now())); err != nil {
			return err
		}
		fmt.Printf("wrote %d definitions to %s\n", *count, *sample)
		return nil
	}

	cfg := config.Read()
	cfg.Runtime.RunAPI = false
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	paths := splitList(*files)
	if len(paths) == 0 {
		paths = cfg.Promo.ImportFiles
	}
	if len(paths) == 0 {
		return errors.New("no definition files given (use -files or PROMO_IMPORT_FILES)")
	}

	logger := config.NewLogger(cfg.Logger, "promo-import")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, logger); err != nil {
		return err
	}

	promos := service.NewPromoService(
		repository.NewPromoCodeRepository(pool, logger),
		repository.NewUsageRepository(pool, logger),
		logger,
	)

	loader := promofile.NewFileLoader(logger)
	if cfg.S3.Enabled {
		s3Loader, err := promofile.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise S3 loader, using local file system only")
		} else {
			loader = promofile.NewFallbackLoader(s3Loader, loader, cfg.S3.Prefix, logger)
		}
	}

	summary, err := promofile.NewImporter(loader, promos, logger).Import(ctx, paths)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("files=%d definitions=%d created=%d skipped=%d failed=%d\n",
		summary.Files, summary.Definitions, summary.Created, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d definitions failed to import", summary.Failed)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
