package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

// ServiceParams configure the scheduler service.
type ServiceParams struct {
	Logger    *logger.Logger
	Pipeline  *Pipeline
	Schedules ScheduleStore
	Payouts   PayoutStore
	Lock      Lock
	Metrics   *metrics.PayoutMetrics
	Config    config.SchedulerConfig
	Now       func() time.Time
}

// State is a snapshot of the scheduler's recent activity, exposed through
// the health endpoint.
type State struct {
	LastTickAt     time.Time `json:"last_tick_at"`
	LastBatchSize  int       `json:"last_batch_size"`
	LastRetryCount int       `json:"last_retry_count"`
	TicksCompleted int64     `json:"ticks_completed"`
}

// Service drives the payout engine: on every tick it takes the distributed
// lock, gathers due schedules and due retries, ranks them, and fans the work
// out to a bounded pool of workers.
type Service struct {
	logg      *logger.Logger
	pipeline  *Pipeline
	schedules ScheduleStore
	payouts   PayoutStore
	lock      Lock
	metrics   *metrics.PayoutMetrics
	cfg       config.SchedulerConfig
	now       func() time.Time

	mu    sync.Mutex
	state State
}

// NewService builds a scheduler service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if params.Schedules == nil {
		return nil, errors.New("schedule store required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout store required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	cfg := params.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		logg:      params.Logger,
		pipeline:  params.Pipeline,
		schedules: params.Schedules,
		payouts:   params.Payouts,
		lock:      params.Lock,
		metrics:   params.Metrics,
		cfg:       cfg,
		now:       params.Now,
	}, nil
}

// State returns a copy of the current scheduler state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run starts the tick loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Tick(ctx); err != nil {
		s.logg.Error(ctx, "scheduler tick failed", err)
	}
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduler context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logg.Error(ctx, "scheduler tick failed", err)
			}
		}
	}
}

// Tick runs one scheduling cycle under the distributed lock.
func (s *Service) Tick(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !locked {
		s.logg.Info(ctx, "another scheduler instance holds the lock, skipping tick")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release scheduler lock", relErr)
		}
	}()

	start := time.Now()
	now := s.now().UTC()

	// Attempts orphaned by a dead worker would otherwise hold their
	// schedule's in-flight slot forever. Reclaiming them first makes them
	// due retries for this very tick.
	reclaimed, err := s.payouts.ReclaimStale(ctx, now.Add(-s.cfg.StaleAfter), now)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "count", reclaimed), "reclaimed interrupted payouts")
	}

	due, err := s.schedules.ListDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	recentFailures, err := s.payouts.SchedulesWithRecentFailure(ctx, now.Add(-s.cfg.FailureCooldown))
	if err != nil {
		return err
	}
	ranked := Prioritize(due, recentFailures, now, s.cfg.OverdueAfter)

	retries, err := s.payouts.ListDueRetries(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"due_schedules": len(ranked),
		"due_retries":   len(retries),
	}), "scheduler tick starting")

	dispatchErr := s.dispatch(ctx, ranked, retries)

	s.metrics.ObserveDuration("tick", time.Since(start))
	s.mu.Lock()
	s.state.LastTickAt = now
	s.state.LastBatchSize = len(ranked)
	s.state.LastRetryCount = len(retries)
	s.state.TicksCompleted++
	s.mu.Unlock()

	s.logg.Info(ctx, "scheduler tick complete")
	return dispatchErr
}

// dispatch fans schedules and retries out to at most MaxConcurrent workers
// and waits for all of them. Context cancellation stops new work from being
// picked up; in-progress payouts run to completion. Individual failures do
// not stop the batch; they are combined into the returned error.
func (s *Service) dispatch(ctx context.Context, ranked []models.PayoutSchedule, retries []models.ScheduledPayout) error {
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var errs []error

	run := func(work func()) {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			work()
		}()
	}

	// Retries first: they already waited out a backoff.
	for i := range retries {
		payout := retries[i]
		run(func() {
			if err := s.pipeline.ProcessRetry(ctx, &payout); err != nil {
				s.logg.Error(s.logg.WithPayoutID(ctx, payout.ID.String()), "retry processing failed", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("retry %s: %w", payout.ID, err))
				mu.Unlock()
			}
		})
	}
	for i := range ranked {
		schedule := ranked[i]
		run(func() {
			if err := s.pipeline.ProcessSchedule(ctx, &schedule); err != nil {
				s.logg.Error(s.logg.WithScheduleID(ctx, schedule.ID.String()), "schedule processing failed", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("schedule %s: %w", schedule.ID, err))
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	return multierr.Combine(errs...)
}
