package schedules

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/internal/cadence"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

// ScheduleStore is the persistence surface the schedule service needs.
// maxAdvanceNoticeDays caps how far ahead an upcoming-payout notice can fire.
const maxAdvanceNoticeDays = 7

type ScheduleStore interface {
	Create(ctx context.Context, schedule *models.PayoutSchedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutSchedule, error)
	ListByPayee(ctx context.Context, payeeID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PayoutSchedule, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// ServiceParams groups dependencies for the schedule service.
type ServiceParams struct {
	Schedules ScheduleStore
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service manages payout schedule lifecycle: creation, cadence changes,
// activation state, and manual triggering.
type Service struct {
	schedules ScheduleStore
	logger    *logger.Logger
	now       func() time.Time
}

// NewService builds the schedule service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Schedules == nil {
		return nil, errors.New("schedule store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{schedules: params.Schedules, logger: params.Logger, now: params.Now}, nil
}

// CreateInput carries the fields for a new schedule.
type CreateInput struct {
	PayeeID              uuid.UUID
	Frequency            enums.PayoutFrequency
	DayOfWeek            *int
	DayOfMonth           *int
	IntervalDays         *int
	MinuteOfDay          int
	MinimumAmount        decimal.Decimal
	Currency             enums.Currency
	AutoDisburse         bool
	TransferMethod       enums.TransferMethod
	BackupTransferMethod *enums.TransferMethod
	NotifyEmail          bool
	NotifySMS            bool
	AdvanceNoticeDays    int
}

// Create validates the cadence anchor and persists a new active schedule with
// its first trigger time computed from now.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.PayoutSchedule, error) {
	if !input.Frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout frequency")
	}
	if !input.TransferMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transfer method")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if input.MinimumAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum amount cannot be negative")
	}
	if input.AdvanceNoticeDays < 0 || input.AdvanceNoticeDays > maxAdvanceNoticeDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance notice days must be between 0 and 7")
	}

	schedule := &models.PayoutSchedule{
		PayeeID:              input.PayeeID,
		Frequency:            input.Frequency,
		DayOfWeek:            input.DayOfWeek,
		DayOfMonth:           input.DayOfMonth,
		IntervalDays:         input.IntervalDays,
		MinuteOfDay:          input.MinuteOfDay,
		MinimumAmount:        input.MinimumAmount,
		Currency:             input.Currency,
		AutoDisburse:         input.AutoDisburse,
		TransferMethod:       input.TransferMethod,
		BackupTransferMethod: input.BackupTransferMethod,
		NotifyEmail:          input.NotifyEmail,
		NotifySMS:            input.NotifySMS,
		AdvanceNoticeDays:    input.AdvanceNoticeDays,
		IsActive:             true,
	}

	anchor, err := cadence.FromSchedule(schedule)
	if err != nil {
		return nil, err
	}
	next := cadence.NextTrigger(anchor, s.now().UTC())
	schedule.NextPayoutAt = &next

	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithScheduleID(ctx, schedule.ID.String()), "payout schedule created")
	return schedule, nil
}

// UpdateInput carries optional schedule changes. Nil fields are unchanged.
// Changing any cadence field requires a complete, matching anchor.
type UpdateInput struct {
	Frequency            *enums.PayoutFrequency
	DayOfWeek            *int
	DayOfMonth           *int
	IntervalDays         *int
	MinuteOfDay          *int
	MinimumAmount        *decimal.Decimal
	AutoDisburse         *bool
	TransferMethod       *enums.TransferMethod
	BackupTransferMethod *enums.TransferMethod
	NotifyEmail          *bool
	NotifySMS            *bool
	AdvanceNoticeDays    *int
}

func (input UpdateInput) touchesCadence() bool {
	return input.Frequency != nil || input.DayOfWeek != nil || input.DayOfMonth != nil ||
		input.IntervalDays != nil || input.MinuteOfDay != nil
}

// Update applies the changes, revalidating the cadence anchor and recomputing
// the next trigger whenever any cadence field moves.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PayoutSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Frequency != nil {
		if !input.Frequency.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout frequency")
		}
		schedule.Frequency = *input.Frequency
		updates["frequency"] = *input.Frequency
		// A frequency change invalidates the old anchor columns.
		schedule.DayOfWeek, schedule.DayOfMonth, schedule.IntervalDays = nil, nil, nil
		updates["day_of_week"], updates["day_of_month"], updates["interval_days"] = nil, nil, nil
	}
	if input.DayOfWeek != nil {
		schedule.DayOfWeek = input.DayOfWeek
		updates["day_of_week"] = *input.DayOfWeek
	}
	if input.DayOfMonth != nil {
		schedule.DayOfMonth = input.DayOfMonth
		updates["day_of_month"] = *input.DayOfMonth
	}
	if input.IntervalDays != nil {
		schedule.IntervalDays = input.IntervalDays
		updates["interval_days"] = *input.IntervalDays
	}
	if input.MinuteOfDay != nil {
		schedule.MinuteOfDay = *input.MinuteOfDay
		updates["minute_of_day"] = *input.MinuteOfDay
	}
	if input.MinimumAmount != nil {
		if input.MinimumAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum amount cannot be negative")
		}
		updates["minimum_amount"] = *input.MinimumAmount
	}
	if input.AutoDisburse != nil {
		updates["auto_disburse"] = *input.AutoDisburse
	}
	if input.TransferMethod != nil {
		if !input.TransferMethod.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transfer method")
		}
		updates["transfer_method"] = *input.TransferMethod
	}
	if input.BackupTransferMethod != nil {
		if !input.BackupTransferMethod.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transfer method")
		}
		updates["backup_transfer_method"] = *input.BackupTransferMethod
	}
	if input.NotifyEmail != nil {
		updates["notify_email"] = *input.NotifyEmail
	}
	if input.NotifySMS != nil {
		updates["notify_sms"] = *input.NotifySMS
	}
	if input.AdvanceNoticeDays != nil {
		if *input.AdvanceNoticeDays < 0 || *input.AdvanceNoticeDays > maxAdvanceNoticeDays {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance notice days must be between 0 and 7")
		}
		updates["advance_notice_days"] = *input.AdvanceNoticeDays
	}

	if input.touchesCadence() {
		anchor, err := cadence.FromSchedule(schedule)
		if err != nil {
			return nil, err
		}
		next := cadence.NextTrigger(anchor, s.now().UTC())
		updates["next_payout_at"] = next
	}

	if len(updates) == 0 {
		return schedule, nil
	}
	if err := s.schedules.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.schedules.FindByID(ctx, id)
}

// Get returns a single schedule by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.PayoutSchedule, error) {
	return s.schedules.FindByID(ctx, id)
}

// Page is one page of schedules plus the cursor for the next page.
type Page struct {
	Items      []models.PayoutSchedule
	NextCursor string
}

// ListByPayee pages through a payee's schedules, newest first.
func (s *Service) ListByPayee(ctx context.Context, payeeID uuid.UUID, cursorToken string, limit int) (*Page, error) {
	cursor, err := pagination.ParseCursor(cursorToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	items, err := s.schedules.ListByPayee(ctx, payeeID, cursor, limit)
	if err != nil {
		return nil, err
	}

	normalized := pagination.NormalizeLimit(limit)
	page := &Page{Items: items}
	if len(items) > normalized {
		page.Items = items[:normalized]
		last := page.Items[len(page.Items)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Deactivate soft-disables the schedule. History is kept and in-flight
// payouts are unaffected; the schedule simply stops triggering.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !schedule.IsActive {
		return nil
	}
	if err := s.schedules.Update(ctx, id, map[string]any{"is_active": false}); err != nil {
		return err
	}
	s.logger.Info(s.logger.WithScheduleID(ctx, id.String()), "payout schedule deactivated")
	return nil
}

// Reactivate re-enables the schedule and recomputes the next trigger from
// now, so a long-dormant schedule does not fire immediately for every
// missed period.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*models.PayoutSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	anchor, err := cadence.FromSchedule(schedule)
	if err != nil {
		return nil, err
	}
	next := cadence.NextTrigger(anchor, s.now().UTC())

	err = s.schedules.Update(ctx, id, map[string]any{
		"is_active":      true,
		"next_payout_at": next,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithScheduleID(ctx, id.String()), "payout schedule reactivated")
	return s.schedules.FindByID(ctx, id)
}

// TriggerNow marks the schedule due immediately. The next scheduler tick
// picks it up through the normal pipeline, so all the usual guards
// (in-flight check, minimums, eligibility) still apply.
func (s *Service) TriggerNow(ctx context.Context, id uuid.UUID) error {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !schedule.IsActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule is not active")
	}

	now := s.now().UTC()
	if err := s.schedules.Update(ctx, id, map[string]any{"next_payout_at": now}); err != nil {
		return err
	}
	s.logger.Info(s.logger.WithScheduleID(ctx, id.String()), "payout schedule triggered manually")
	return nil
}
