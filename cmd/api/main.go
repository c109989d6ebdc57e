package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promo-orders/internal/analytics"
	"promo-orders/internal/config"
	"promo-orders/internal/database"
	"promo-orders/internal/handler"
	"promo-orders/internal/queue"
	"promo-orders/internal/repository"
	"promo-orders/internal/router"
	"promo-orders/internal/scheduler"
	"promo-orders/internal/service"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger, "promo-orders")
	logger.Info().
		Bool("api", cfg.Runtime.RunAPI).
		Bool("workers", cfg.Runtime.RunWorkers).
		Msg("starting promo-orders")

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

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redisClient.Close()

	queueOpts := []queue.Option{
		queue.WithPrefix(cfg.Queue.Prefix),
		queue.WithLockDuration(cfg.Queue.LockDuration),
		queue.WithCompletedRetention(cfg.Queue.CompletedRetention),
	}
	orderQueue := queue.New(redisClient, service.OrderQueueName, logger, queueOpts...)
	analyticsQueue := queue.New(redisClient, analytics.QueueName, logger, queueOpts...)

	var store analytics.Store = analytics.NopStore{}
	if cfg.ClickHouse.Enabled {
		chStore, err := analytics.NewClickHouseStore(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize analytics store: %w", err)
		}
		store = chStore
	} else {
		logger.Info().Msg("clickhouse disabled, analytics mirror writes are discarded")
	}
	defer store.Close()

	// Initialize repositories
	promoRepo := repository.NewPromoCodeRepository(pool, logger)
	usageRepo := repository.NewUsageRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)

	mirror := analytics.NewMirror(store, userRepo, analyticsQueue, cfg.Analytics.RetryDelay, logger)

	// Initialize services
	promoService := service.NewPromoService(promoRepo, usageRepo, logger)
	usageService := service.NewUsageService(usageRepo, mirror, logger)
	orderService := service.NewOrderService(
		orderRepo,
		promoService,
		usageService,
		mirror,
		orderQueue,
		service.OrderOptions{Attempts: cfg.Queue.Attempts, BackoffDelay: cfg.Queue.BackoffDelay},
		logger,
	)

	if cfg.Promo.SeedDefault {
		if err := promoService.EnsureDefault(ctx); err != nil {
			return fmt.Errorf("failed to seed default promo code: %w", err)
		}
	}

	// Workers get their own context so jobs in flight when the signal arrives
	// can finish.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var workers errgroup.Group
	var sched *scheduler.Scheduler

	if cfg.Runtime.RunWorkers {
		orderWorker := queue.NewWorker(orderQueue, orderService.ProcessOrderJob, queue.WorkerOptions{
			Concurrency:  cfg.Queue.WorkerConcurrency,
			PollInterval: cfg.Queue.PollInterval,
		}, logger)
		analyticsWorker := queue.NewWorker(analyticsQueue, mirror.HandleRetry, queue.WorkerOptions{
			Concurrency:  cfg.Analytics.WorkerConcurrency,
			PollInterval: cfg.Queue.PollInterval,
		}, logger)

		workers.Go(func() error { return orderWorker.Run(workerCtx) })
		workers.Go(func() error { return analyticsWorker.Run(workerCtx) })

		sched, err = scheduler.New(logger,
			scheduler.RecoverStalledJobs(cfg.Scheduler.StalledJobsInterval, logger, orderQueue, analyticsQueue),
			scheduler.ExpirePromoCodes(cfg.Scheduler.PromoExpiryInterval, promoService),
		)
		if err != nil {
			cancelWorkers()
			_ = workers.Wait()
			return err
		}
		sched.Start()
	}

	var server *http.Server
	serverErrors := make(chan error, 1)

	if cfg.Runtime.RunAPI {
		mux := router.New(router.Handlers{
			Orders: handler.NewOrderHandler(orderService, logger),
			Promos: handler.NewPromoHandler(promoService, logger),
			Usage:  handler.NewUsageHandler(usageService, logger),
		}, cfg.Auth.APIKey, logger)

		server = &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info().
				Str("address", cfg.Server.Address()).
				Msg("HTTP server started")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	}

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
		} else {
			logger.Info().Msg("server shutdown completed")
		}
	}

	cancelWorkers()
	if err := workers.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
	}

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("failed to stop scheduler")
		}
	}

	logger.Info().Msg("shutdown completed")
	return runErr
}
