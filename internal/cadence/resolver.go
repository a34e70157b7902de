package cadence

import (
	"time"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Anchor is a validated cadence variant. Construction enforces that the
// anchor fields match the frequency, so a "wrong anchor for frequency"
// schedule cannot exist past this boundary.
type Anchor struct {
	frequency    enums.PayoutFrequency
	dayOfWeek    int
	dayOfMonth   int
	intervalDays int
	minuteOfDay  int
}

// NewWeeklyAnchor builds an anchor firing on dayOfWeek (0=Sunday) at
// minuteOfDay UTC.
func NewWeeklyAnchor(dayOfWeek, minuteOfDay int) (Anchor, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return Anchor{}, pkgerrors.New(pkgerrors.CodeValidation, "day of week must be between 0 and 6")
	}
	if err := validateMinute(minuteOfDay); err != nil {
		return Anchor{}, err
	}
	return Anchor{
		frequency:   enums.PayoutFrequencyWeekly,
		dayOfWeek:   dayOfWeek,
		minuteOfDay: minuteOfDay,
	}, nil
}

// NewMonthlyAnchor builds an anchor firing on dayOfMonth at minuteOfDay UTC.
// Days beyond a month's end clamp to that month's last day at resolution time.
func NewMonthlyAnchor(dayOfMonth, minuteOfDay int) (Anchor, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return Anchor{}, pkgerrors.New(pkgerrors.CodeValidation, "day of month must be between 1 and 31")
	}
	if err := validateMinute(minuteOfDay); err != nil {
		return Anchor{}, err
	}
	return Anchor{
		frequency:   enums.PayoutFrequencyMonthly,
		dayOfMonth:  dayOfMonth,
		minuteOfDay: minuteOfDay,
	}, nil
}

// NewCustomAnchor builds an anchor firing every intervalDays.
func NewCustomAnchor(intervalDays int) (Anchor, error) {
	if intervalDays < 1 {
		return Anchor{}, pkgerrors.New(pkgerrors.CodeValidation, "interval days must be at least 1")
	}
	return Anchor{
		frequency:    enums.PayoutFrequencyCustom,
		intervalDays: intervalDays,
	}, nil
}

func validateMinute(minuteOfDay int) error {
	if minuteOfDay < 0 || minuteOfDay >= 24*60 {
		return pkgerrors.New(pkgerrors.CodeValidation, "minute of day must be within a single day")
	}
	return nil
}

// Frequency returns the cadence class of the anchor.
func (a Anchor) Frequency() enums.PayoutFrequency {
	return a.frequency
}

// FromSchedule validates a stored schedule's anchor columns into an Anchor.
func FromSchedule(schedule *models.PayoutSchedule) (Anchor, error) {
	switch schedule.Frequency {
	case enums.PayoutFrequencyWeekly:
		if schedule.DayOfWeek == nil {
			return Anchor{}, pkgerrors.New(pkgerrors.CodeConfiguration, "weekly schedule missing day of week")
		}
		return NewWeeklyAnchor(*schedule.DayOfWeek, schedule.MinuteOfDay)
	case enums.PayoutFrequencyMonthly:
		if schedule.DayOfMonth == nil {
			return Anchor{}, pkgerrors.New(pkgerrors.CodeConfiguration, "monthly schedule missing day of month")
		}
		return NewMonthlyAnchor(*schedule.DayOfMonth, schedule.MinuteOfDay)
	case enums.PayoutFrequencyCustom:
		if schedule.IntervalDays == nil {
			return Anchor{}, pkgerrors.New(pkgerrors.CodeConfiguration, "custom schedule missing interval days")
		}
		return NewCustomAnchor(*schedule.IntervalDays)
	default:
		return Anchor{}, pkgerrors.New(pkgerrors.CodeConfiguration, "unknown schedule frequency")
	}
}

// NextTrigger computes the next trigger timestamp strictly after from.
// For weekly and monthly anchors, "after" accounts for the configured
// time-of-day: a from instant earlier in the anchor day still resolves to
// that same day.
func NextTrigger(anchor Anchor, from time.Time) time.Time {
	from = from.UTC()
	switch anchor.frequency {
	case enums.PayoutFrequencyWeekly:
		return nextWeekly(anchor, from)
	case enums.PayoutFrequencyMonthly:
		return nextMonthly(anchor, from)
	default:
		return from.Add(time.Duration(anchor.intervalDays) * 24 * time.Hour)
	}
}

func nextWeekly(anchor Anchor, from time.Time) time.Time {
	daysAhead := (anchor.dayOfWeek - int(from.Weekday()) + 7) % 7
	candidate := atMinute(from.AddDate(0, 0, daysAhead), anchor.minuteOfDay)
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func nextMonthly(anchor Anchor, from time.Time) time.Time {
	candidate := monthlyOccurrence(from.Year(), from.Month(), anchor)
	if candidate.After(from) {
		return candidate
	}
	year, month := from.Year(), from.Month()
	if month == time.December {
		year, month = year+1, time.January
	} else {
		month++
	}
	return monthlyOccurrence(year, month, anchor)
}

// monthlyOccurrence clamps the anchor day to the month's last valid day, so a
// day-31 anchor resolves to Feb 28/29 rather than skipping into March.
func monthlyOccurrence(year int, month time.Month, anchor Anchor) time.Time {
	day := anchor.dayOfMonth
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	base := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return atMinute(base, anchor.minuteOfDay)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func atMinute(day time.Time, minuteOfDay int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, time.UTC)
}
