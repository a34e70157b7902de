package schedules

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/repo"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// Repository persists PayoutSchedule rows.
type Repository struct {
	repo.Base
}

// NewRepository constructs a schedule repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a new schedule row.
func (r *Repository) Create(ctx context.Context, schedule *models.PayoutSchedule) error {
	if err := r.DB(ctx).Create(schedule).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create schedule")
	}
	return nil
}

// FindByID returns the schedule or a NOT_FOUND error.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutSchedule, error) {
	var schedule models.PayoutSchedule
	err := r.DB(ctx).Where("id = ?", id).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find schedule")
	}
	return &schedule, nil
}

// ListByPayee returns the payee's schedules newest first with cursor pagination.
func (r *Repository) ListByPayee(ctx context.Context, payeeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PayoutSchedule, error) {
	query := r.DB(ctx).Where("payee_id = ?", payeeID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var schedules []models.PayoutSchedule
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&schedules).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list schedules")
	}
	return schedules, nil
}

// ListDue returns active auto-disburse schedules whose trigger time has
// arrived, limited to batchSize rows ordered by how long they have waited.
func (r *Repository) ListDue(ctx context.Context, now time.Time, batchSize int) ([]models.PayoutSchedule, error) {
	var schedules []models.PayoutSchedule
	err := r.DB(ctx).
		Where("is_active = TRUE AND auto_disburse = TRUE").
		Where("next_payout_at IS NOT NULL AND next_payout_at <= ?", now).
		Order("next_payout_at ASC").
		Limit(batchSize).
		Find(&schedules).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due schedules")
	}
	return schedules, nil
}

// Update applies the column updates to the schedule row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.DB(ctx).Model(&models.PayoutSchedule{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update schedule")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	return nil
}

// RecordCompletion advances the schedule's bookkeeping after a completed
// payout: counters, last payout stamp, and the next trigger time.
func (r *Repository) RecordCompletion(ctx context.Context, id uuid.UUID, payout *models.ScheduledPayout, nextPayoutAt time.Time) error {
	result := r.DB(ctx).Model(&models.PayoutSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_payout_at":     payout.PeriodEnd,
			"next_payout_at":     nextPayoutAt,
			"total_payouts_sent": gorm.Expr("total_payouts_sent + 1"),
			"total_amount_paid":  gorm.Expr("total_amount_paid + ?", payout.NetAmount),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "record completion")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	return nil
}

// CountOverdue is a small health probe: active schedules whose trigger has
// been waiting since before the cutoff.
func (r *Repository) CountOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.PayoutSchedule{}).
		Where("is_active = TRUE AND next_payout_at IS NOT NULL AND next_payout_at <= ?", cutoff).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count overdue schedules")
	}
	return count, nil
}
