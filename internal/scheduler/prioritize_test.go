package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
)

func scheduleDue(sinceHours int, totalPaid string) models.PayoutSchedule {
	trigger := prioritizeNow.Add(-time.Duration(sinceHours) * time.Hour)
	return models.PayoutSchedule{
		ID:              uuid.New(),
		NextPayoutAt:    &trigger,
		TotalAmountPaid: decimal.RequireFromString(totalPaid),
	}
}

var prioritizeNow = time.Date(2026, time.March, 6, 12, 0, 0, 0, time.UTC)

func TestPrioritizeOverdueJumpsQueue(t *testing.T) {
	overdueOld := scheduleDue(6, "100.00")
	overdueNewer := scheduleDue(3, "9000.00")
	fresh := scheduleDue(0, "5000.00")

	ranked := Prioritize(
		[]models.PayoutSchedule{fresh, overdueNewer, overdueOld},
		nil, prioritizeNow, time.Hour,
	)

	require.Equal(t, overdueOld.ID, ranked[0].ID)
	require.Equal(t, overdueNewer.ID, ranked[1].ID)
	require.Equal(t, fresh.ID, ranked[2].ID)
}

func TestPrioritizeVolumeOrdersFreshSchedules(t *testing.T) {
	small := scheduleDue(0, "150.00")
	large := scheduleDue(0, "25000.00")
	medium := scheduleDue(0, "4000.00")

	ranked := Prioritize(
		[]models.PayoutSchedule{small, large, medium},
		nil, prioritizeNow, time.Hour,
	)

	require.Equal(t, large.ID, ranked[0].ID)
	require.Equal(t, medium.ID, ranked[1].ID)
	require.Equal(t, small.ID, ranked[2].ID)
}

func TestPrioritizeRecentFailureDropsToBack(t *testing.T) {
	// Three due schedules but capacity for two: the one that just failed
	// must be the one deferred to the next tick.
	overdue := scheduleDue(2, "100.00")
	highVolume := scheduleDue(0, "25000.00")
	recentlyFailed := scheduleDue(4, "50000.00")

	failures := map[uuid.UUID]struct{}{recentlyFailed.ID: {}}
	ranked := Prioritize(
		[]models.PayoutSchedule{recentlyFailed, highVolume, overdue},
		failures, prioritizeNow, time.Hour,
	)

	budget := ranked[:2]
	require.Equal(t, overdue.ID, budget[0].ID)
	require.Equal(t, highVolume.ID, budget[1].ID)
	require.Equal(t, recentlyFailed.ID, ranked[2].ID)
}

func TestPrioritizeNilTriggerGoesWithVolume(t *testing.T) {
	noTrigger := models.PayoutSchedule{ID: uuid.New(), TotalAmountPaid: decimal.RequireFromString("10.00")}
	due := scheduleDue(0, "20.00")

	ranked := Prioritize([]models.PayoutSchedule{noTrigger, due}, nil, prioritizeNow, time.Hour)
	require.Len(t, ranked, 2)
	require.Equal(t, due.ID, ranked[0].ID)
}
