package schedules

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

type fakeScheduleStore struct {
	schedules map[uuid.UUID]*models.PayoutSchedule
}

func newFakeScheduleStore(schedules ...*models.PayoutSchedule) *fakeScheduleStore {
	store := &fakeScheduleStore{schedules: map[uuid.UUID]*models.PayoutSchedule{}}
	for _, schedule := range schedules {
		store.schedules[schedule.ID] = schedule
	}
	return store
}

func (f *fakeScheduleStore) Create(_ context.Context, schedule *models.PayoutSchedule) error {
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	f.schedules[schedule.ID] = schedule
	return nil
}

func (f *fakeScheduleStore) FindByID(_ context.Context, id uuid.UUID) (*models.PayoutSchedule, error) {
	schedule, ok := f.schedules[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	copied := *schedule
	return &copied, nil
}

func (f *fakeScheduleStore) ListByPayee(_ context.Context, payeeID uuid.UUID, _ *pagination.Cursor, _ int) ([]models.PayoutSchedule, error) {
	var out []models.PayoutSchedule
	for _, schedule := range f.schedules {
		if schedule.PayeeID == payeeID {
			out = append(out, *schedule)
		}
	}
	return out, nil
}

func (f *fakeScheduleStore) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	schedule, ok := f.schedules[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	for key, value := range updates {
		switch key {
		case "is_active":
			schedule.IsActive = value.(bool)
		case "next_payout_at":
			switch v := value.(type) {
			case time.Time:
				schedule.NextPayoutAt = &v
			case nil:
				schedule.NextPayoutAt = nil
			}
		case "frequency":
			schedule.Frequency = value.(enums.PayoutFrequency)
		case "day_of_week":
			if v, ok := value.(int); ok {
				schedule.DayOfWeek = &v
			} else {
				schedule.DayOfWeek = nil
			}
		case "day_of_month":
			if v, ok := value.(int); ok {
				schedule.DayOfMonth = &v
			} else {
				schedule.DayOfMonth = nil
			}
		case "interval_days":
			if v, ok := value.(int); ok {
				schedule.IntervalDays = &v
			} else {
				schedule.IntervalDays = nil
			}
		case "minute_of_day":
			schedule.MinuteOfDay = value.(int)
		}
	}
	return nil
}

var testNow = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC) // Wednesday

func newScheduleService(t *testing.T, store *fakeScheduleStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Schedules: store,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc
}

func intPtr(v int) *int { return &v }

func TestCreateWeeklyScheduleComputesFirstTrigger(t *testing.T) {
	store := newFakeScheduleStore()
	svc := newScheduleService(t, store)

	schedule, err := svc.Create(context.Background(), CreateInput{
		PayeeID:        uuid.New(),
		Frequency:      enums.PayoutFrequencyWeekly,
		DayOfWeek:      intPtr(5), // Friday
		MinuteOfDay:    9 * 60,
		MinimumAmount:  decimal.RequireFromString("50.00"),
		Currency:       enums.CurrencyUSD,
		AutoDisburse:   true,
		TransferMethod: enums.TransferMethodStandard,
	})
	require.NoError(t, err)
	require.True(t, schedule.IsActive)
	require.NotNil(t, schedule.NextPayoutAt)
	require.Equal(t, time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC), *schedule.NextPayoutAt)
}

func TestCreateRejectsMismatchedAnchor(t *testing.T) {
	svc := newScheduleService(t, newFakeScheduleStore())

	_, err := svc.Create(context.Background(), CreateInput{
		PayeeID:        uuid.New(),
		Frequency:      enums.PayoutFrequencyWeekly,
		DayOfMonth:     intPtr(15), // wrong anchor for weekly
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
	})
	require.Error(t, err)
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, pkgerrors.CodeConfiguration, appErr.Code())
}

func TestUpdateCadenceRecomputesNextTrigger(t *testing.T) {
	old := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	schedule := &models.PayoutSchedule{
		ID:             uuid.New(),
		PayeeID:        uuid.New(),
		Frequency:      enums.PayoutFrequencyWeekly,
		DayOfWeek:      intPtr(5),
		MinuteOfDay:    9 * 60,
		Currency:       enums.CurrencyUSD,
		TransferMethod: enums.TransferMethodStandard,
		NextPayoutAt:   &old,
		IsActive:       true,
	}
	store := newFakeScheduleStore(schedule)
	svc := newScheduleService(t, store)

	frequency := enums.PayoutFrequencyMonthly
	updated, err := svc.Update(context.Background(), schedule.ID, UpdateInput{
		Frequency:  &frequency,
		DayOfMonth: intPtr(15),
	})
	require.NoError(t, err)
	require.Equal(t, enums.PayoutFrequencyMonthly, updated.Frequency)
	require.NotNil(t, updated.NextPayoutAt)
	require.Equal(t, time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC), *updated.NextPayoutAt)
}

func TestUpdateNonCadenceFieldKeepsTrigger(t *testing.T) {
	next := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	schedule := &models.PayoutSchedule{
		ID:           uuid.New(),
		Frequency:    enums.PayoutFrequencyWeekly,
		DayOfWeek:    intPtr(5),
		NextPayoutAt: &next,
		IsActive:     true,
	}
	store := newFakeScheduleStore(schedule)
	svc := newScheduleService(t, store)

	email := false
	updated, err := svc.Update(context.Background(), schedule.ID, UpdateInput{NotifyEmail: &email})
	require.NoError(t, err)
	require.Equal(t, next, *updated.NextPayoutAt)
}

func TestDeactivateAndReactivate(t *testing.T) {
	stale := testNow.AddDate(0, -2, 0)
	schedule := &models.PayoutSchedule{
		ID:           uuid.New(),
		Frequency:    enums.PayoutFrequencyWeekly,
		DayOfWeek:    intPtr(5),
		MinuteOfDay:  9 * 60,
		NextPayoutAt: &stale,
		IsActive:     true,
	}
	store := newFakeScheduleStore(schedule)
	svc := newScheduleService(t, store)

	require.NoError(t, svc.Deactivate(context.Background(), schedule.ID))
	require.False(t, store.schedules[schedule.ID].IsActive)

	reactivated, err := svc.Reactivate(context.Background(), schedule.ID)
	require.NoError(t, err)
	require.True(t, reactivated.IsActive)
	// Dormant period is skipped: the trigger moves to the next future Friday.
	require.Equal(t, time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC), *reactivated.NextPayoutAt)
}

func TestTriggerNowRequiresActiveSchedule(t *testing.T) {
	schedule := &models.PayoutSchedule{
		ID:        uuid.New(),
		Frequency: enums.PayoutFrequencyWeekly,
		DayOfWeek: intPtr(5),
		IsActive:  false,
	}
	store := newFakeScheduleStore(schedule)
	svc := newScheduleService(t, store)

	err := svc.TriggerNow(context.Background(), schedule.ID)
	require.Error(t, err)

	store.schedules[schedule.ID].IsActive = true
	require.NoError(t, svc.TriggerNow(context.Background(), schedule.ID))
	require.Equal(t, testNow, *store.schedules[schedule.ID].NextPayoutAt)
}
