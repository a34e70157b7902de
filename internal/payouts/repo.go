package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/payflow-backend/internal/repo"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// Repository persists ScheduledPayout rows.
type Repository struct {
	repo.Base
}

// NewRepository constructs a payout repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new payout row.
func (r *Repository) Create(ctx context.Context, payout *models.ScheduledPayout) error {
	if err := r.DB(ctx).Create(payout).Error; err != nil {
		// Partial unique index on in-flight rows backstops the pre-create
		// in-flight check against concurrent ticks.
		if db.IsUniqueViolation(err, "uq_scheduled_payouts_inflight") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "schedule already has an in-flight payout")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}
	return nil
}

// FindByID returns the payout or a NOT_FOUND error.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error) {
	var payout models.ScheduledPayout
	err := r.DB(ctx).Where("id = ?", id).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payout")
	}
	return &payout, nil
}

// FindInFlightBySchedule returns the schedule's open payout, or nil when the
// schedule has none. At most one can exist per schedule.
func (r *Repository) FindInFlightBySchedule(ctx context.Context, scheduleID uuid.UUID) (*models.ScheduledPayout, error) {
	var payout models.ScheduledPayout
	err := r.DB(ctx).
		Where("schedule_id = ? AND status IN ?", scheduleID, inFlightStatuses()).
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find in-flight payout")
	}
	return &payout, nil
}

// ListDueRetries returns failed payouts whose backoff has elapsed, oldest
// deadline first, locked for the calling transaction.
func (r *Repository) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]models.ScheduledPayout, error) {
	var payouts []models.ScheduledPayout
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", enums.PayoutStatusFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due retries")
	}
	return payouts, nil
}

// ListByPayee returns the payee's payouts newest first with cursor pagination.
func (r *Repository) ListByPayee(ctx context.Context, payeeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledPayout, error) {
	query := r.DB(ctx).Where("payee_id = ?", payeeID)
	return r.list(query, cursor, limit)
}

// ListBySchedule returns the schedule's payouts newest first with cursor pagination.
func (r *Repository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledPayout, error) {
	query := r.DB(ctx).Where("schedule_id = ?", scheduleID)
	return r.list(query, cursor, limit)
}

func (r *Repository) list(query *gorm.DB, cursor *pagination.Cursor, limit int) ([]models.ScheduledPayout, error) {
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var payouts []models.ScheduledPayout
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&payouts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}

// Update applies the column updates to the payout row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.DB(ctx).Model(&models.ScheduledPayout{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update payout")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	return nil
}

// UpdateWhereStatus applies updates only if the row is still in fromStatus.
// A zero rows-affected result signals a lost race, reported as STATE_CONFLICT.
func (r *Repository) UpdateWhereStatus(ctx context.Context, id uuid.UUID, fromStatus enums.PayoutStatus, updates map[string]any) error {
	result := r.DB(ctx).Model(&models.ScheduledPayout{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update payout")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payout status changed concurrently")
	}
	return nil
}

// ReclaimStale returns interrupted attempts to the retry path. A payout
// stuck in pending, processing, or retrying past the cutoff belongs to a
// worker that died mid-flight; flipping it to failed with an immediate
// next_retry_at lets the next tick resubmit the frozen amounts under the
// original payout id, so the rail's idempotency guard absorbs any attempt
// that did reach it. The interruption does not charge the retry budget.
func (r *Repository) ReclaimStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	stuck := []enums.PayoutStatus{
		enums.PayoutStatusPending,
		enums.PayoutStatusProcessing,
		enums.PayoutStatusRetrying,
	}
	result := r.DB(ctx).Model(&models.ScheduledPayout{}).
		Where("status IN ? AND updated_at < ?", stuck, cutoff).
		Updates(map[string]any{
			"status":         enums.PayoutStatusFailed,
			"next_retry_at":  now,
			"failure_reason": "attempt interrupted",
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "reclaim stale payouts")
	}
	return result.RowsAffected, nil
}

// SchedulesWithRecentFailure returns schedule IDs that had a payout failure
// at or after the cutoff. The scheduler uses this for cooldown ranking.
func (r *Repository) SchedulesWithRecentFailure(ctx context.Context, since time.Time) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.ScheduledPayout{}).
		Distinct("schedule_id").
		Where("status IN ? AND updated_at >= ?", []enums.PayoutStatus{enums.PayoutStatusFailed, enums.PayoutStatusRetrying, enums.PayoutStatusFailedFinal}, since).
		Pluck("schedule_id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedules with recent failure")
	}

	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// AnalyticsRow aggregates payout outcomes over a reporting window.
type AnalyticsRow struct {
	TotalPayouts     int64
	CompletedPayouts int64
	FailedPayouts    int64
	TotalPaid        decimal.Decimal
	TotalFees        decimal.Decimal
}

// Aggregate computes payout totals between start and end.
func (r *Repository) Aggregate(ctx context.Context, start, end time.Time) (*AnalyticsRow, error) {
	var row AnalyticsRow
	err := r.DB(ctx).Model(&models.ScheduledPayout{}).
		Select(`
			COUNT(*) AS total_payouts,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_payouts,
			COUNT(*) FILTER (WHERE status = 'failed_final') AS failed_payouts,
			COALESCE(SUM(net_amount) FILTER (WHERE status = 'completed'), 0) AS total_paid,
			COALESCE(SUM(platform_fee) FILTER (WHERE status = 'completed'), 0) AS total_fees`).
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payouts")
	}
	return &row, nil
}

// FailureBreakdown counts terminal failures per reason between start and end.
func (r *Repository) FailureBreakdown(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	type reasonCount struct {
		Reason string
		Count  int64
	}
	var rows []reasonCount
	err := r.DB(ctx).Model(&models.ScheduledPayout{}).
		Select("COALESCE(failure_reason, 'unknown') AS reason, COUNT(*) AS count").
		Where("status = ? AND created_at >= ? AND created_at < ?", enums.PayoutStatusFailedFinal, start, end).
		Group("reason").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failure breakdown")
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Reason] = row.Count
	}
	return out, nil
}

func inFlightStatuses() []enums.PayoutStatus {
	return []enums.PayoutStatus{
		enums.PayoutStatusPending,
		enums.PayoutStatusProcessing,
		enums.PayoutStatusFailed,
		enums.PayoutStatusRetrying,
	}
}
