package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/internal/models"
	appErrors "github.com/edupagos/colegio-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardDebtReader interface {
	TotalOutstanding(ctx context.Context) (float64, error)
	CountOverdueAt(ctx context.Context, today string) (int, error)
}

type dashboardStudentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardPaymentReader interface {
	TotalCollectedSince(ctx context.Context, dateFrom string) (float64, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates the admin landing page numbers, cached in
// Redis for a short TTL because every admin page load requests them.
type DashboardService struct {
	debts    dashboardDebtReader
	students dashboardStudentCounter
	payments dashboardPaymentReader
	cache    statsCache
	metrics  *MetricsService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(debts dashboardDebtReader, students dashboardStudentCounter, payments dashboardPaymentReader, cache statsCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		debts:    debts,
		students: students,
		payments: payments,
		cache:    cache,
		metrics:  metrics,
		ttl:      ttl,
		logger:   logger,
	}
}

// Stats returns the dashboard summary, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *DashboardService) compute(ctx context.Context) (*models.DashboardStats, error) {
	active, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	outstanding, err := s.debts.TotalOutstanding(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total outstanding debts")
	}
	overdue, err := s.debts.CountOverdueAt(ctx, ledger.Today())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue debts")
	}

	monthStart := time.Now().Format("2006-01") + "-01"
	collected, err := s.payments.TotalCollectedSince(ctx, monthStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total collected payments")
	}

	return &models.DashboardStats{
		ActiveStudents:     active,
		TotalOutstanding:   ledger.Round2(outstanding),
		OverdueDebts:       overdue,
		CollectedThisMonth: ledger.Round2(collected),
	}, nil
}

// Invalidate drops the cached summary. Called after ledger mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
