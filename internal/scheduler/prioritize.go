package scheduler

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
)

// Processing ranks within a tick:
//
//	0: overdue schedules, oldest trigger first
//	1: everything else, highest lifetime volume first
//	2: schedules with a recent payout failure, cooling down
const (
	rankOverdue = iota
	rankVolume
	rankCooldown
)

// Prioritize orders due schedules for a capacity-limited batch. Overdue
// payees jump the queue, high-volume payees go before low-volume ones, and
// schedules that just failed wait out a cooldown at the back so a flapping
// rail does not starve healthy payees.
func Prioritize(schedules []models.PayoutSchedule, recentFailures map[uuid.UUID]struct{}, now time.Time, overdueAfter time.Duration) []models.PayoutSchedule {
	ranked := make([]models.PayoutSchedule, len(schedules))
	copy(ranked, schedules)

	rankOf := func(s *models.PayoutSchedule) int {
		if _, failed := recentFailures[s.ID]; failed {
			return rankCooldown
		}
		if s.NextPayoutAt != nil && now.Sub(*s.NextPayoutAt) > overdueAfter {
			return rankOverdue
		}
		return rankVolume
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := rankOf(&ranked[i]), rankOf(&ranked[j])
		if ri != rj {
			return ri < rj
		}
		switch ri {
		case rankOverdue:
			// Oldest waiting trigger first.
			return triggerTime(&ranked[i]).Before(triggerTime(&ranked[j]))
		default:
			return ranked[i].TotalAmountPaid.GreaterThan(ranked[j].TotalAmountPaid)
		}
	})
	return ranked
}

func triggerTime(s *models.PayoutSchedule) time.Time {
	if s.NextPayoutAt == nil {
		return time.Time{}
	}
	return *s.NextPayoutAt
}
