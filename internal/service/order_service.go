package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/queue"
	"promo-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderQueueName is the queue carrying order requests.
const OrderQueueName = "orders"

// JobProcessOrder is the job name of a queued order request.
const JobProcessOrder = "process-order"

// OrderOptions controls how order requests are queued.
type OrderOptions struct {
	Attempts     int
	BackoffDelay time.Duration
}

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	promos    PromoService
	usages    UsageService
	mirror    AnalyticsMirror
	queue     JobQueue
	opts      OrderOptions
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	promos PromoService,
	usages UsageService,
	mirror AnalyticsMirror,
	jobs JobQueue,
	opts OrderOptions,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		promos:    promos,
		usages:    usages,
		mirror:    mirror,
		queue:     jobs,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder queues an order request. The request id doubles as the job id,
// so submitting the same request twice yields one job.
func (s *orderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.EnqueueResult, error) {
	data, err := s.prepare(req, "order_")
	if err != nil {
		return nil, err
	}

	job, err := s.queue.Add(ctx, JobProcessOrder, data, queue.JobOptions{
		JobID:    data.RequestID,
		Attempts: s.opts.Attempts,
		Backoff: queue.Backoff{
			Type:  queue.BackoffExponential,
			Delay: s.opts.BackoffDelay,
		},
		RemoveOnComplete: true,
		RemoveOnFail:     false,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", data.RequestID).Msg("failed to queue order")
		return nil, fmt.Errorf("failed to queue order: %w", err)
	}

	// An existing job with this id must carry the same request. Data is empty
	// only while a concurrent Add is still writing the job.
	if len(job.Data) > 0 {
		var queued model.OrderJobData
		if err := job.Decode(&queued); err != nil {
			return nil, fmt.Errorf("failed to read queued order: %w", err)
		}
		if !queued.SameRequest(data) {
			s.logger.Warn().
				Str("job_id", job.ID).
				Str("user_id", data.UserID.String()).
				Msg("request id reused for a different order")
			return nil, model.ErrIdempotencyReused
		}
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", data.UserID.String()).
		Msg("order queued")

	status := string(job.State)
	if job.State == queue.StateWaiting || job.State == queue.StateDelayed {
		status = "queued"
	}

	return &model.EnqueueResult{JobID: job.ID, Status: status}, nil
}

// CreateOrderDirect places an order synchronously.
func (s *orderService) CreateOrderDirect(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error) {
	data, err := s.prepare(req, "direct_")
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", data.RequestID).
		Str("user_id", data.UserID.String()).
		Msg("placing direct order")

	return s.placeOrder(ctx, data, func(int) {})
}

// ProcessOrderJob is the worker handler for queued order requests.
func (s *orderService) ProcessOrderJob(ctx context.Context, job *queue.Job) (any, error) {
	var data model.OrderJobData
	if err := job.Decode(&data); err != nil {
		return nil, err
	}

	log := s.logger.With().Str("job_id", job.ID).Str("request_id", data.RequestID).Logger()
	log.Info().Str("user_id", data.UserID.String()).Msg("processing order")

	order, err := s.placeOrder(ctx, data, func(progress int) {
		if err := job.UpdateProgress(ctx, progress); err != nil {
			log.Warn().Err(err).Int("progress", progress).Msg("failed to update job progress")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("order processing failed")
		return nil, err
	}

	log.Info().Str("order_id", order.ID.String()).Msg("order processed")
	return order, nil
}

// GetJobStatus reports the state of a queued order request.
func (s *orderService) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatus, error) {
	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return nil, model.NewDomainError(model.ErrCodeJobNotFound, fmt.Sprintf("Job %s not found", jobID))
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	status := &model.JobStatus{
		JobID:        job.ID,
		Status:       string(job.State),
		Error:        job.FailedReason,
		Progress:     job.Progress,
		AttemptsMade: job.AttemptsMade,
	}

	if job.State == queue.StateCompleted {
		var order model.Order
		if err := job.DecodeResult(&order); err != nil {
			return nil, fmt.Errorf("failed to read job result: %w", err)
		}
		status.Result = &order
	}

	return status, nil
}

// GetByID retrieves an order.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// GetUserOrders pages through a user's orders.
func (s *orderService) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*model.OrderPage, error) {
	page, limit = model.NormalizePage(page, limit)

	orders, total, err := s.orderRepo.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	return &model.OrderPage{
		Orders: orders,
		Total:  total,
		Page:   page,
		Pages:  model.PageCount(total, limit),
	}, nil
}

// GetUserStats aggregates a user's orders.
func (s *orderService) GetUserStats(ctx context.Context, userID uuid.UUID) (*model.UserOrderStats, error) {
	stats, err := s.orderRepo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

// GetAllOrders pages through all orders, narrowed by filter.
func (s *orderService) GetAllOrders(ctx context.Context, filter model.OrderFilter, page, limit int) (*model.OrderPage, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, model.NewValidationError("startDate must not be after endDate")
	}
	page, limit = model.NormalizePage(page, limit)

	orders, total, err := s.orderRepo.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	return &model.OrderPage{
		Orders: orders,
		Total:  total,
		Page:   page,
		Pages:  model.PageCount(total, limit),
	}, nil
}

// prepare validates a request and turns it into the job payload.
func (s *orderService) prepare(req *model.CreateOrderRequest, requestPrefix string) (model.OrderJobData, error) {
	if req == nil {
		return model.OrderJobData{}, model.NewValidationError("Order request is required")
	}
	if !req.Amount.IsPositive() {
		return model.OrderJobData{}, model.NewValidationError("Amount must be greater than 0")
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return model.OrderJobData{}, model.NewValidationError("Invalid user id")
	}

	code := model.NormalizeCode(req.PromoCode)
	if code != "" && (len(code) < 4 || len(code) > 50) {
		return model.OrderJobData{}, model.NewValidationError("Promo code must be between 4 and 50 characters")
	}

	if len(req.RequestID) > model.MaxRequestIDLength {
		return model.OrderJobData{}, model.NewValidationError(
			fmt.Sprintf("Request id must be at most %d characters", model.MaxRequestIDLength))
	}

	requestID := requestPrefix + uuid.NewString()
	if req.RequestID != "" {
		requestID = model.ScopedRequestID(userID, req.RequestID)
	}

	return model.OrderJobData{
		UserID:    userID,
		Amount:    req.Amount,
		PromoCode: code,
		RequestID: requestID,
	}, nil
}

// placeOrder runs the placement steps shared by the queued and direct paths:
// per-user precheck, redemption with order insert, ledger entry, analytics sync.
// A request whose order already exists resumes at the ledger step.
func (s *orderService) placeOrder(ctx context.Context, data model.OrderJobData, progress func(int)) (*model.Order, error) {
	order, err := s.orderRepo.GetByRequestID(ctx, data.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}

	discountPercent := 0
	resumed := order != nil
	if !resumed {
		order, discountPercent, err = s.createOrder(ctx, data, progress)
		if errors.Is(err, model.ErrOrderExists) {
			// A concurrent attempt of the same request stored the order first.
			order, err = s.orderRepo.GetByRequestID(ctx, data.RequestID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up order: %w", err)
			}
			if order == nil {
				return nil, fmt.Errorf("order for request %s missing after conflict", data.RequestID)
			}
			resumed = true
		} else if err != nil {
			return nil, err
		}
	}

	if resumed {
		if !order.MatchesRequest(data) {
			s.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("request_id", data.RequestID).
				Msg("request id reused for a different order")
			return nil, model.ErrIdempotencyReused
		}

		s.logger.Info().
			Str("order_id", order.ID.String()).
			Str("request_id", data.RequestID).
			Msg("order already placed, resuming")

		if order.PromoCodeID != nil {
			promo, err := s.promos.GetByID(ctx, *order.PromoCodeID)
			if err != nil {
				return nil, err
			}
			discountPercent = promo.DiscountPercent
		}
	}
	progress(50)

	if order.PromoCodeID != nil {
		_, err := s.usages.Record(ctx, model.RecordUsageParams{
			PromoCodeID:     *order.PromoCodeID,
			UserID:          order.UserID,
			OrderID:         order.ID,
			OrderAmount:     order.Amount,
			DiscountAmount:  order.DiscountAmount,
			FinalAmount:     order.FinalAmount,
			DiscountPercent: discountPercent,
			PromoCode:       *order.PromoCode,
		})
		if err != nil {
			return nil, err
		}
	}
	progress(75)

	s.mirror.SyncOrder(ctx, model.NewOrderEvent(order, discountPercent))
	progress(100)

	return order, nil
}

// createOrder stores a new order. With a promo code the redemption and the
// insert commit together, so a failed insert consumes nothing.
func (s *orderService) createOrder(ctx context.Context, data model.OrderJobData, progress func(int)) (*model.Order, int, error) {
	now := s.now()
	order := &model.Order{
		ID:        model.OrderIDForRequest(data.RequestID),
		RequestID: data.RequestID,
		UserID:    data.UserID,
		Status:    model.OrderCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.SetAmounts(data.Amount, decimal.Zero)

	discountPercent := 0
	if data.PromoCode == "" {
		progress(25)
		if err := s.orderRepo.Create(ctx, order); err != nil {
			if errors.Is(err, model.ErrOrderExists) {
				return nil, 0, err
			}
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
			return nil, 0, fmt.Errorf("failed to create order: %w", err)
		}
	} else {
		if err := s.checkUserLimit(ctx, data); err != nil {
			return nil, 0, err
		}
		progress(25)

		code := data.PromoCode
		order.PromoCode = &code
		redemption, err := s.promos.RedeemForOrder(ctx, order)
		if err != nil {
			return nil, 0, err
		}
		discountPercent = redemption.DiscountPercent
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID.String()).
		Str("final_amount", order.FinalAmount.String()).
		Msg("order created")

	return order, discountPercent, nil
}

// checkUserLimit rejects a request early when the user has already used the
// code as often as allowed. The redemption enforces the cap again atomically.
func (s *orderService) checkUserLimit(ctx context.Context, data model.OrderJobData) error {
	promo, err := s.promos.Get(ctx, data.PromoCode)
	if err != nil {
		return err
	}

	used, err := s.usages.CountForUser(ctx, promo.ID, data.UserID)
	if err != nil {
		return err
	}
	if used >= promo.MaxUsagePerUser {
		s.logger.Warn().
			Str("promo_code", promo.Code).
			Str("user_id", data.UserID.String()).
			Int("used", used).
			Msg("per-user promo code limit reached")
		return model.ErrPromoLimitExceeded
	}
	return nil
}
