package scheduler

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/payouts"
	"github.com/angelmondragon/payflow-backend/internal/schedules"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// CompletionStore finalizes a successful disbursement.
type CompletionStore interface {
	FinalizeSuccess(ctx context.Context, payout *models.ScheduledPayout, fromStatus enums.PayoutStatus, externalRef string, nextPayoutAt time.Time) error
}

// Finalizer commits the success path atomically: the payout flips to
// completed, the window's transactions are stamped with the payout id, and
// the schedule's counters and next trigger advance. All three land or none
// do, so a crash can never complete a payout while leaving its transactions
// open for re-inclusion.
type Finalizer struct {
	client *db.Client
}

// NewFinalizer builds a finalizer over the database client.
func NewFinalizer(client *db.Client) (*Finalizer, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	return &Finalizer{client: client}, nil
}

// FinalizeSuccess implements CompletionStore.
func (f *Finalizer) FinalizeSuccess(ctx context.Context, payout *models.ScheduledPayout, fromStatus enums.PayoutStatus, externalRef string, nextPayoutAt time.Time) error {
	return f.client.WithTx(ctx, func(tx *gorm.DB) error {
		payoutRepo := payouts.NewRepository(tx)
		transactionRepo := payouts.NewTransactionRepository(tx)
		scheduleRepo := schedules.NewRepository(tx)

		err := payoutRepo.UpdateWhereStatus(ctx, payout.ID, fromStatus, map[string]any{
			"status":        enums.PayoutStatusCompleted,
			"external_ref":  externalRef,
			"next_retry_at": nil,
		})
		if err != nil {
			return err
		}

		_, err = transactionRepo.MarkConsumed(ctx, payout.PayeeID, payout.ID, payout.PeriodStart, payout.PeriodEnd)
		if err != nil {
			return err
		}

		return scheduleRepo.RecordCompletion(ctx, payout.ScheduleID, payout, nextPayoutAt)
	})
}
