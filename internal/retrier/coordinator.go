package retrier

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/disbursement"
	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
)

// PayoutUpdater is the slice of payout persistence the coordinator needs.
type PayoutUpdater interface {
	UpdateWhereStatus(ctx context.Context, id uuid.UUID, fromStatus enums.PayoutStatus, updates map[string]any) error
}

// CoordinatorParams groups dependencies for the retry coordinator.
type CoordinatorParams struct {
	Payouts PayoutUpdater
	Metrics *metrics.PayoutMetrics
	Logger  *logger.Logger
	Retry   config.RetryConfig
	Now     func() time.Time
}

// Coordinator owns the failure side of the payout state machine: classifying
// attempt outcomes into bounded-backoff retries or terminal failures. The
// payout's amounts are never recomputed on this path; retries resubmit the
// frozen calculation under the original payout id.
type Coordinator struct {
	payouts PayoutUpdater
	metrics *metrics.PayoutMetrics
	logger  *logger.Logger
	retry   config.RetryConfig
	now     func() time.Time
}

// NewCoordinator builds a retry coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Payouts == nil {
		return nil, errors.New("payout updater required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Coordinator{
		payouts: params.Payouts,
		metrics: params.Metrics,
		logger:  params.Logger,
		retry:   params.Retry,
		now:     params.Now,
	}, nil
}

// Backoff returns the delay before the given attempt number is retried:
// base doubled per prior attempt, capped at the configured maximum.
func (c *Coordinator) Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	backoff := time.Duration(float64(c.retry.BaseBackoff) * math.Pow(2, float64(retryCount)))
	if backoff > c.retry.MaxBackoff || backoff <= 0 {
		backoff = c.retry.MaxBackoff
	}
	return backoff
}

// HandleFailure transitions a processing payout after a failed attempt.
// Retry-eligible failures below the retry budget go back to failed with a
// scheduled next_retry_at; everything else finalizes as failed_final. The
// returned final flag tells the caller the payout is terminal so the
// schedule can move past it.
func (c *Coordinator) HandleFailure(ctx context.Context, payout *models.ScheduledPayout, attempt *disbursement.AttemptResult) (final bool, err error) {
	ctx = c.logger.WithPayoutID(ctx, payout.ID.String())

	if attempt.RetryEligible && payout.RetryCount < payout.MaxRetries {
		nextRetryAt := c.now().UTC().Add(c.Backoff(payout.RetryCount))
		err := c.payouts.UpdateWhereStatus(ctx, payout.ID, enums.PayoutStatusProcessing, map[string]any{
			"status":         enums.PayoutStatusFailed,
			"retry_count":    payout.RetryCount + 1,
			"next_retry_at":  nextRetryAt,
			"failure_reason": attempt.ErrorCode,
		})
		if err != nil {
			return false, err
		}

		c.metrics.IncFailure(attempt.ErrorCode)
		c.logger.Warn(c.logger.WithFields(ctx, map[string]any{
			"retry_count":   payout.RetryCount + 1,
			"next_retry_at": nextRetryAt,
			"reason":        attempt.ErrorCode,
		}), "payout attempt failed, retry scheduled")
		return false, nil
	}

	if err := c.finalize(ctx, payout, attempt); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Coordinator) finalize(ctx context.Context, payout *models.ScheduledPayout, attempt *disbursement.AttemptResult) error {
	err := c.payouts.UpdateWhereStatus(ctx, payout.ID, enums.PayoutStatusProcessing, map[string]any{
		"status":         enums.PayoutStatusFailedFinal,
		"next_retry_at":  nil,
		"failure_reason": attempt.ErrorCode,
	})
	if err != nil {
		return err
	}

	c.metrics.IncFailure(attempt.ErrorCode)
	c.logger.Error(ctx, "payout failed permanently", errors.New(attempt.ErrorMessage))
	return nil
}

// BeginRetry claims a due failed payout for re-execution. The guarded update
// loses gracefully if another worker claimed it first.
func (c *Coordinator) BeginRetry(ctx context.Context, payout *models.ScheduledPayout) error {
	return c.payouts.UpdateWhereStatus(ctx, payout.ID, enums.PayoutStatusFailed, map[string]any{
		"status": enums.PayoutStatusRetrying,
	})
}

// BeginProcessing moves a claimed retry into processing just before the rail
// submission.
func (c *Coordinator) BeginProcessing(ctx context.Context, payout *models.ScheduledPayout) error {
	return c.payouts.UpdateWhereStatus(ctx, payout.ID, enums.PayoutStatusRetrying, map[string]any{
		"status": enums.PayoutStatusProcessing,
	})
}
