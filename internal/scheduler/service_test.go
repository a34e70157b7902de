package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/rail"
)

type fakeLock struct {
	available bool
	acquired  int
	released  int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquired++
	return f.available, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.released++
	return nil
}

func newSchedulerService(t *testing.T, fx *pipelineFixture, lock Lock) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Pipeline:  fx.pipeline,
		Schedules: fx.schedules,
		Payouts:   fx.payouts,
		Lock:      lock,
		Config: config.SchedulerConfig{
			TickInterval:    time.Minute,
			BatchSize:       50,
			MaxConcurrent:   4,
			OverdueAfter:    time.Hour,
			FailureCooldown: time.Hour,
			StaleAfter:      30 * time.Minute,
		},
		Now: func() time.Time { return pipelineNow },
	})
	require.NoError(t, err)
	return svc
}

func TestTickProcessesDueSchedules(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	railFake := &fakeRail{result: &rail.TransferResult{ExternalRef: "tr_1"}}
	fx := newPipelineFixture(t, schedule, settledTransactions(payeeID, "100.00", 12), railFake)
	lock := &fakeLock{available: true}
	svc := newSchedulerService(t, fx, lock)

	require.NoError(t, svc.Tick(context.Background()))

	require.Len(t, fx.payouts.payouts, 1)
	for _, payout := range fx.payouts.payouts {
		require.Equal(t, enums.PayoutStatusCompleted, payout.Status)
	}
	require.Equal(t, 1, lock.acquired)
	require.Equal(t, 1, lock.released)

	state := svc.State()
	require.Equal(t, pipelineNow, state.LastTickAt)
	require.Equal(t, 1, state.LastBatchSize)
	require.Equal(t, int64(1), state.TicksCompleted)
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	fx := newPipelineFixture(t, schedule, settledTransactions(payeeID, "100.00", 12), &fakeRail{})
	lock := &fakeLock{available: false}
	svc := newSchedulerService(t, fx, lock)

	require.NoError(t, svc.Tick(context.Background()))
	require.Empty(t, fx.payouts.payouts)
	require.Zero(t, lock.released)
}

func TestTickRunsDueRetriesBeforeSchedules(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	// No due schedule this tick; only a retry whose backoff elapsed.
	future := pipelineNow.Add(time.Hour)
	schedule.NextPayoutAt = &future

	railFake := &fakeRail{result: &rail.TransferResult{ExternalRef: "tr_2"}}
	fx := newPipelineFixture(t, schedule, nil, railFake)

	retryAt := pipelineNow.Add(-time.Minute)
	failed := &models.ScheduledPayout{
		ID:          uuid.New(),
		ScheduleID:  schedule.ID,
		PayeeID:     payeeID,
		Status:      enums.PayoutStatusFailed,
		RetryCount:  1,
		MaxRetries:  3,
		NextRetryAt: &retryAt,
		Currency:    enums.CurrencyUSD,
		PeriodStart: pipelineNow.AddDate(0, 0, -7),
		PeriodEnd:   pipelineNow,
	}
	fx.payouts.payouts[failed.ID] = failed

	svc := newSchedulerService(t, fx, &fakeLock{available: true})
	require.NoError(t, svc.Tick(context.Background()))

	require.Equal(t, enums.PayoutStatusCompleted, fx.payouts.payouts[failed.ID].Status)
	require.Equal(t, 1, svc.State().LastRetryCount)
}

func TestTickReclaimsInterruptedPayouts(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	// Keep the schedule itself out of this tick.
	future := pipelineNow.Add(time.Hour)
	schedule.NextPayoutAt = &future

	railFake := &fakeRail{result: &rail.TransferResult{ExternalRef: "tr_3"}}
	fx := newPipelineFixture(t, schedule, nil, railFake)

	// A payout stranded in processing by a worker that died an hour ago.
	stuck := &models.ScheduledPayout{
		ID:             uuid.New(),
		ScheduleID:     schedule.ID,
		PayeeID:        payeeID,
		NetAmount:      decimal.RequireFromString("120.00"),
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		Status:         enums.PayoutStatusProcessing,
		RetryCount:     1,
		MaxRetries:     3,
		PeriodStart:    pipelineNow.AddDate(0, 0, -7),
		PeriodEnd:      pipelineNow,
		UpdatedAt:      pipelineNow.Add(-time.Hour),
	}
	fx.payouts.payouts[stuck.ID] = stuck

	svc := newSchedulerService(t, fx, &fakeLock{available: true})
	require.NoError(t, svc.Tick(context.Background()))

	// The same tick sweeps it back to failed and runs it as a due retry,
	// resubmitting under the original payout id without charging the
	// retry budget for the interruption.
	require.Equal(t, enums.PayoutStatusCompleted, fx.payouts.payouts[stuck.ID].Status)
	require.Equal(t, []string{stuck.ID.String()}, fx.railFake.keys)
	require.Equal(t, 1, fx.payouts.payouts[stuck.ID].RetryCount)
}

func TestTickDoesNotReprocessFinalFailure(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	railFake := &fakeRail{err: &rail.Error{Code: "account_frozen", Message: "account frozen", Retryable: false}}
	fx := newPipelineFixture(t, schedule, settledTransactions(payeeID, "100.00", 12), railFake)
	svc := newSchedulerService(t, fx, &fakeLock{available: true})

	require.NoError(t, svc.Tick(context.Background()))
	require.NoError(t, svc.Tick(context.Background()))

	// One payout, one rail submission, one notification. The second tick
	// must not mint a fresh payout over the same window under a new
	// idempotency key.
	require.Len(t, fx.payouts.payouts, 1)
	require.Equal(t, 1, fx.railFake.calls)
	require.Len(t, fx.railFake.keys, 1)
	require.Equal(t, []enums.NotificationKind{enums.NotificationKindFailedFinal}, fx.sink.kinds)
	for _, payout := range fx.payouts.payouts {
		require.Equal(t, enums.PayoutStatusFailedFinal, payout.Status)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	payeeID := uuid.New()
	schedule := weeklySchedule(payeeID)
	fx := newPipelineFixture(t, schedule, nil, &fakeRail{})
	svc := newSchedulerService(t, fx, &fakeLock{available: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
