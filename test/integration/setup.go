package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"promo-orders/internal/analytics"
	"promo-orders/internal/config"
	"promo-orders/internal/database"
	"promo-orders/internal/handler"
	"promo-orders/internal/model"
	"promo-orders/internal/queue"
	"promo-orders/internal/repository"
	"promo-orders/internal/router"
	"promo-orders/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAPIKey = "test-api-key"

// TestEnv is a fully wired application backed by a PostgreSQL container and
// an in-memory Redis.
type TestEnv struct {
	Pool        *pgxpool.Pool
	Server      http.Handler
	OrderWorker *queue.Worker
	Promos      service.PromoService
	Analytics   *RecordingStore
}

// RecordingStore is an analytics store that keeps mirrored orders in memory.
type RecordingStore struct {
	analytics.NopStore

	mu     sync.Mutex
	orders map[uuid.UUID]*model.User
}

func (s *RecordingStore) WriteOrder(_ context.Context, ev model.OrderEvent, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = make(map[uuid.UUID]*model.User)
	}
	s.orders[ev.OrderID] = user
	return nil
}

// MirroredUser returns the user the order was mirrored with, or nil.
func (s *RecordingStore) MirroredUser(orderID uuid.UUID) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID]
}

// SetupTestEnv starts PostgreSQL, applies migrations and wires every layer the
// way cmd/api does, minus the background workers.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.Nop()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := database.NewPool(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, logger))

	mr := miniredis.RunT(t)
	redisClient, err := database.NewRedisClient(ctx, config.RedisConfig{Addr: mr.Addr()}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	orderQueue := queue.New(redisClient, service.OrderQueueName, logger, queue.WithPrefix("it"))
	analyticsQueue := queue.New(redisClient, analytics.QueueName, logger, queue.WithPrefix("it"))

	promoRepo := repository.NewPromoCodeRepository(pool, logger)
	usageRepo := repository.NewUsageRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)

	store := &RecordingStore{}
	mirror := analytics.NewMirror(store, userRepo, analyticsQueue, time.Second, logger)

	promoService := service.NewPromoService(promoRepo, usageRepo, logger)
	usageService := service.NewUsageService(usageRepo, mirror, logger)
	orderService := service.NewOrderService(
		orderRepo,
		promoService,
		usageService,
		mirror,
		orderQueue,
		service.OrderOptions{Attempts: 3, BackoffDelay: time.Second},
		logger,
	)

	server := router.New(router.Handlers{
		Orders: handler.NewOrderHandler(orderService, logger),
		Promos: handler.NewPromoHandler(promoService, logger),
		Usage:  handler.NewUsageHandler(usageService, logger),
	}, testAPIKey, logger)

	return &TestEnv{
		Pool:        pool,
		Server:      server,
		OrderWorker: queue.NewWorker(orderQueue, orderService.ProcessOrderJob, queue.WorkerOptions{Concurrency: 1}, logger),
		Promos:      promoService,
		Analytics:   store,
	}
}

// SeedUser inserts a user the way the external user directory would. The
// service only reads this table.
func SeedUser(t *testing.T, pool *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3)`,
		id, fmt.Sprintf("%s-%s@example.com", name, id.String()[:8]), name)
	require.NoError(t, err)
	return id
}

// CleanupDB removes all rows from the application tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"promo_usages", "orders", "promo_code_users", "promo_codes", "users"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
