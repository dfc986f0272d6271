package finance

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RetryPolicy bounds local retries of transient ledger reads
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns three attempts starting at 100ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// LedgerService reads a day's transactions and aggregates them. Storage
// errors are retried with exponential backoff; once attempts run out the
// caller gets ErrAggregationUnavailable.
type LedgerService struct {
	revenueRepo finance.RevenueRepository
	expenseRepo finance.ExpenseRepository
	retry       RetryPolicy
	metrics     Recorder
	logger      *zap.Logger
}

// LedgerServiceConfig holds the ledger service dependencies
type LedgerServiceConfig struct {
	RevenueRepo finance.RevenueRepository
	ExpenseRepo finance.ExpenseRepository
	Retry       RetryPolicy
	Metrics     Recorder
	Logger      *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopRecorder{}
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = DefaultRetryPolicy().InitialInterval
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	return &LedgerService{
		revenueRepo: cfg.RevenueRepo,
		expenseRepo: cfg.ExpenseRepo,
		retry:       retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// Aggregate returns the ledger of the calendar day of date
func (s *LedgerService) Aggregate(ctx context.Context, scope shared.SchoolScope, date string) (*finance.DailyLedger, error) {
	if err := finance.ValidateDate(date); err != nil {
		return nil, err
	}
	day := finance.DayOf(date)

	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "aggregate",
		telemetry.SpanAttrSchoolID, scope.SchoolID.String(),
		telemetry.SpanAttrDate, day,
	)
	defer span.End()

	var revenues []finance.Revenue
	var expenses []finance.Expense
	err := s.withRetry(ctx, "aggregate", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			r, err := s.revenueRepo.FindByDay(gctx, scope, day)
			if err != nil {
				return err
			}
			revenues = r
			return nil
		})
		g.Go(func() error {
			e, err := s.expenseRepo.FindByDay(gctx, scope, day)
			if err != nil {
				return err
			}
			expenses = e
			return nil
		})
		return g.Wait()
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ledger := finance.Aggregate(day, revenues, expenses)
	return &ledger, nil
}

// PeriodTotals sums non-void revenues and expenses between two days, inclusive
func (s *LedgerService) PeriodTotals(ctx context.Context, scope shared.SchoolScope, fromDay, toDay string) (income, expenses decimal.Decimal, err error) {
	if err := finance.ValidateDate(fromDay); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := finance.ValidateDate(toDay); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	err = s.withRetry(ctx, "period_totals", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			v, err := s.revenueRepo.SumBetween(gctx, scope, finance.DayOf(fromDay), finance.DayOf(toDay))
			income = v
			return err
		})
		g.Go(func() error {
			v, err := s.expenseRepo.SumBetween(gctx, scope, finance.DayOf(fromDay), finance.DayOf(toDay))
			expenses = v
			return err
		})
		return g.Wait()
	})
	return income, expenses, err
}

// withRetry runs op until it succeeds, returns a domain error, or attempts
// run out. Domain errors are never retried.
func (s *LedgerService) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retry.InitialInterval
	eb.MaxInterval = s.retry.MaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.retry.MaxAttempts-1)), ctx)

	operation := func() error {
		err := fn(ctx)
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.AggregationRetry()
		s.logger.Warn("Ledger read failed, retrying",
			zap.String("operation", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Error("Ledger unavailable after retries",
		zap.String("operation", op),
		zap.Int("attempts", s.retry.MaxAttempts),
		zap.Error(err),
	)
	return finance.ErrAggregationUnavailable
}
