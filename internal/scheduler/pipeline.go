package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/cadence"
	"github.com/angelmondragon/payflow-backend/internal/disbursement"
	"github.com/angelmondragon/payflow-backend/internal/health"
	"github.com/angelmondragon/payflow-backend/internal/notifier"
	"github.com/angelmondragon/payflow-backend/internal/payouts"
	"github.com/angelmondragon/payflow-backend/internal/retrier"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

// ScheduleStore is the schedule persistence the pipeline needs.
type ScheduleStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutSchedule, error)
	ListDue(ctx context.Context, now time.Time, batchSize int) ([]models.PayoutSchedule, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// PayoutStore is the payout persistence the pipeline needs.
type PayoutStore interface {
	Create(ctx context.Context, payout *models.ScheduledPayout) error
	FindInFlightBySchedule(ctx context.Context, scheduleID uuid.UUID) (*models.ScheduledPayout, error)
	ListDueRetries(ctx context.Context, now time.Time, limit int) ([]models.ScheduledPayout, error)
	ReclaimStale(ctx context.Context, cutoff, now time.Time) (int64, error)
	SchedulesWithRecentFailure(ctx context.Context, since time.Time) (map[uuid.UUID]struct{}, error)
	UpdateWhereStatus(ctx context.Context, id uuid.UUID, fromStatus enums.PayoutStatus, updates map[string]any) error
}

// PipelineParams groups dependencies for the per-schedule pipeline.
type PipelineParams struct {
	Schedules   ScheduleStore
	Payouts     PayoutStore
	FeeConfigs  payouts.FeeConfigReader
	Calculator  *payouts.CalculationService
	Executor    *disbursement.Executor
	Retrier     *retrier.Coordinator
	Completions CompletionStore
	Notifier    notifier.Sink
	Metrics     *metrics.PayoutMetrics
	Health      *health.Monitor
	Logger      *logger.Logger
	Retry       config.RetryConfig
	Now         func() time.Time
}

// Pipeline runs one schedule (or one due retry) end to end: calculation,
// payout creation, disbursement, and finalization.
type Pipeline struct {
	schedules   ScheduleStore
	payouts     PayoutStore
	feeConfigs  payouts.FeeConfigReader
	calculator  *payouts.CalculationService
	executor    *disbursement.Executor
	retrier     *retrier.Coordinator
	completions CompletionStore
	notifier    notifier.Sink
	metrics     *metrics.PayoutMetrics
	health      *health.Monitor
	logger      *logger.Logger
	retry       config.RetryConfig
	now         func() time.Time
}

// NewPipeline builds the payout pipeline.
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	switch {
	case params.Schedules == nil:
		return nil, errors.New("schedule store required")
	case params.Payouts == nil:
		return nil, errors.New("payout store required")
	case params.FeeConfigs == nil:
		return nil, errors.New("fee config reader required")
	case params.Calculator == nil:
		return nil, errors.New("calculator required")
	case params.Executor == nil:
		return nil, errors.New("executor required")
	case params.Retrier == nil:
		return nil, errors.New("retrier required")
	case params.Completions == nil:
		return nil, errors.New("completion store required")
	case params.Notifier == nil:
		return nil, errors.New("notifier required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Pipeline{
		schedules:   params.Schedules,
		payouts:     params.Payouts,
		feeConfigs:  params.FeeConfigs,
		calculator:  params.Calculator,
		executor:    params.Executor,
		retrier:     params.Retrier,
		completions: params.Completions,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		health:      params.Health,
		logger:      params.Logger,
		retry:       params.Retry,
		now:         params.Now,
	}, nil
}

// ProcessSchedule runs one due schedule through the pipeline.
func (p *Pipeline) ProcessSchedule(ctx context.Context, schedule *models.PayoutSchedule) error {
	ctx = p.logger.WithScheduleID(ctx, schedule.ID.String())
	ctx = p.logger.WithPayeeID(ctx, schedule.PayeeID.String())
	now := p.now().UTC()

	// One in-flight payout per schedule. The partial unique index backs
	// this up at the database; checking first keeps the log clean.
	inFlight, err := p.payouts.FindInFlightBySchedule(ctx, schedule.ID)
	if err != nil {
		return err
	}
	if inFlight != nil {
		p.logger.Info(p.logger.WithPayoutID(ctx, inFlight.ID.String()), "schedule already has an in-flight payout, skipping")
		return nil
	}

	calcStart := time.Now()
	result, err := p.calculator.Calculate(ctx, schedule, now)
	p.metrics.ObserveDuration("calculate", time.Since(calcStart))
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConfiguration {
			return p.failConfiguration(ctx, schedule, err)
		}
		p.logger.Error(ctx, "payout calculation failed", err)
		return err
	}

	if result.Deferred {
		return p.deferPayout(ctx, schedule, result, now)
	}

	payout := &models.ScheduledPayout{
		ID:             uuid.New(),
		ScheduleID:     schedule.ID,
		PayeeID:        schedule.PayeeID,
		GrossAmount:    result.Gross,
		PlatformFee:    result.PlatformFee,
		NetAmount:      result.Net,
		Currency:       schedule.Currency,
		PeriodStart:    result.PeriodStart,
		PeriodEnd:      result.PeriodEnd,
		Status:         enums.PayoutStatusPending,
		TransferMethod: schedule.TransferMethod,
		MaxRetries:     p.retry.MaxRetries,
	}
	if err := p.payouts.Create(ctx, payout); err != nil {
		return err
	}
	ctx = p.logger.WithPayoutID(ctx, payout.ID.String())
	p.logger.Info(ctx, "payout created")

	if schedule.AdvanceNoticeDays > 0 && schedule.NotificationsEnabled() {
		p.notify(ctx, schedule.PayeeID, enums.NotificationKindAdvance, payout, "")
	}

	return p.disburse(ctx, schedule, payout, enums.PayoutStatusPending)
}

// failConfiguration handles a terminal calculation error: the payee's fee
// configuration is missing or inactive and no attempt can succeed until an
// operator repairs it. The schedule is deactivated so the tick stops
// re-firing it, and the payee is told why no payout arrived. The window's
// transactions stay unconsumed for the reactivated schedule to pick up.
func (p *Pipeline) failConfiguration(ctx context.Context, schedule *models.PayoutSchedule, cause error) error {
	if p.health != nil {
		p.health.Record(0, false)
	}
	p.metrics.IncFailure("configuration")
	p.logger.Error(ctx, "payout blocked by payee configuration, deactivating schedule", cause)

	if err := p.schedules.Update(ctx, schedule.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}

	notifyErr := p.notifier.Notify(ctx, schedule.PayeeID, enums.NotificationKindConfigError, notifier.Payload{
		Currency: schedule.Currency,
		Reason:   cause.Error(),
	})
	if notifyErr != nil {
		p.logger.Error(ctx, "notification delivery failed", notifyErr)
	}
	return nil
}

// defer_ records a deferral and advances the schedule so the tick does not
// spin on it. The window's transactions stay unconsumed.
func (p *Pipeline) deferPayout(ctx context.Context, schedule *models.PayoutSchedule, result *payouts.CalculationResult, now time.Time) error {
	p.metrics.IncDeferred()
	p.logger.Info(p.logger.WithField(ctx, "reason", result.DeferredReason), "payout deferred")
	return p.advanceSchedule(ctx, schedule, now)
}

// advanceSchedule moves the schedule's trigger one cadence period past now
// without touching its completion counters.
func (p *Pipeline) advanceSchedule(ctx context.Context, schedule *models.PayoutSchedule, now time.Time) error {
	anchor, err := cadence.FromSchedule(schedule)
	if err != nil {
		return err
	}
	next := cadence.NextTrigger(anchor, now)
	return p.schedules.Update(ctx, schedule.ID, map[string]any{"next_payout_at": next})
}

// disburse moves the payout into processing, submits it, and routes the
// outcome. fromStatus is pending for first attempts and retrying for
// re-attempts.
func (p *Pipeline) disburse(ctx context.Context, schedule *models.PayoutSchedule, payout *models.ScheduledPayout, fromStatus enums.PayoutStatus) error {
	err := p.payouts.UpdateWhereStatus(ctx, payout.ID, fromStatus, map[string]any{
		"status": enums.PayoutStatusProcessing,
	})
	if err != nil {
		return err
	}
	payout.Status = enums.PayoutStatusProcessing

	feeConfig, err := p.feeConfigs.FindByPayee(ctx, payout.PayeeID)
	if err != nil {
		return err
	}

	start := time.Now()
	attempt, err := p.executor.Execute(ctx, payout, feeConfig)
	duration := time.Since(start)
	p.metrics.ObserveDuration("disburse", duration)
	if err != nil {
		return err
	}

	if p.health != nil {
		p.health.Record(duration, attempt.Success)
	}

	if attempt.Success {
		return p.complete(ctx, schedule, payout, attempt.ExternalRef)
	}

	final, err := p.retrier.HandleFailure(ctx, payout, attempt)
	if err != nil {
		return err
	}
	if !final {
		return nil
	}

	if schedule.NotificationsEnabled() {
		p.notify(ctx, payout.PayeeID, enums.NotificationKindFailedFinal, payout, attempt.ErrorCode)
	}
	// The window stays unconsumed for manual remediation, but the trigger
	// must move on. A terminal payout is no longer in flight, so leaving
	// the schedule due would mint a fresh payout over the same window on
	// the next tick, under a new idempotency key.
	return p.advanceSchedule(ctx, schedule, p.now().UTC())
}

func (p *Pipeline) complete(ctx context.Context, schedule *models.PayoutSchedule, payout *models.ScheduledPayout, externalRef string) error {
	anchor, err := cadence.FromSchedule(schedule)
	if err != nil {
		return err
	}
	next := cadence.NextTrigger(anchor, p.now().UTC())

	if err := p.completions.FinalizeSuccess(ctx, payout, enums.PayoutStatusProcessing, externalRef, next); err != nil {
		return err
	}

	p.metrics.IncSuccess(payout.TransferMethod.String())
	p.logger.Info(p.logger.WithField(ctx, "external_ref", externalRef), "payout completed")
	if schedule.NotificationsEnabled() {
		p.notify(ctx, payout.PayeeID, enums.NotificationKindCompleted, payout, "")
	}
	return nil
}

// ProcessRetry re-runs a failed payout whose backoff has elapsed. The
// amounts are the frozen originals; only the submission repeats, under the
// same idempotency key.
func (p *Pipeline) ProcessRetry(ctx context.Context, payout *models.ScheduledPayout) error {
	ctx = p.logger.WithPayoutID(ctx, payout.ID.String())

	if err := p.retrier.BeginRetry(ctx, payout); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// Another worker claimed it first.
			return nil
		}
		return err
	}
	payout.Status = enums.PayoutStatusRetrying

	schedule, err := p.schedules.FindByID(ctx, payout.ScheduleID)
	if err != nil {
		return err
	}
	p.logger.Info(p.logger.WithField(ctx, "retry_count", payout.RetryCount), "retrying payout")
	return p.disburse(ctx, schedule, payout, enums.PayoutStatusRetrying)
}

func (p *Pipeline) notify(ctx context.Context, payeeID uuid.UUID, kind enums.NotificationKind, payout *models.ScheduledPayout, reason string) {
	err := p.notifier.Notify(ctx, payeeID, kind, notifier.Payload{
		PayoutID:    payout.ID,
		Amount:      payout.NetAmount,
		Currency:    payout.Currency,
		PeriodStart: payout.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   payout.PeriodEnd.Format(time.RFC3339),
		Reason:      reason,
	})
	if err != nil {
		p.logger.Error(ctx, "notification delivery failed", err)
	}
}
