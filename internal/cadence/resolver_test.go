package cadence

import (
	"testing"
	"time"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

func mustWeekly(t *testing.T, dayOfWeek, minuteOfDay int) Anchor {
	t.Helper()
	anchor, err := NewWeeklyAnchor(dayOfWeek, minuteOfDay)
	if err != nil {
		t.Fatalf("NewWeeklyAnchor: %v", err)
	}
	return anchor
}

func mustMonthly(t *testing.T, dayOfMonth, minuteOfDay int) Anchor {
	t.Helper()
	anchor, err := NewMonthlyAnchor(dayOfMonth, minuteOfDay)
	if err != nil {
		t.Fatalf("NewMonthlyAnchor: %v", err)
	}
	return anchor
}

func TestNextTriggerWeekly(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	anchor := mustWeekly(t, 1, 9*60) // Mondays at 09:00 UTC

	// From earlier the same weekday: fires the same day.
	got := NextTrigger(anchor, monday)
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("same-day trigger: got %s want %s", got, want)
	}

	// From after the time-of-day: fires the following week.
	got = NextTrigger(anchor, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	want = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next-week trigger: got %s want %s", got, want)
	}

	// From a different weekday: fires the next occurrence.
	got = NextTrigger(anchor, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	if !got.Equal(want) {
		t.Fatalf("midweek trigger: got %s want %s", got, want)
	}
}

func TestNextTriggerMonthlyClampsToFebruary(t *testing.T) {
	anchor := mustMonthly(t, 31, 0)

	got := NextTrigger(anchor, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	want := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("february clamp: got %s want %s", got, want)
	}

	// Leap year clamps to the 29th.
	got = NextTrigger(anchor, time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC))
	want = time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("leap-year clamp: got %s want %s", got, want)
	}
}

func TestNextTriggerMonthlyRollsToNextMonth(t *testing.T) {
	anchor := mustMonthly(t, 15, 9*60)

	got := NextTrigger(anchor, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	want := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("rollover: got %s want %s", got, want)
	}

	// December rolls into January of the next year.
	got = NextTrigger(anchor, time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC))
	want = time.Date(2027, 1, 15, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("year rollover: got %s want %s", got, want)
	}
}

func TestNextTriggerCustomInterval(t *testing.T) {
	anchor, err := NewCustomAnchor(14)
	if err != nil {
		t.Fatalf("NewCustomAnchor: %v", err)
	}
	from := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	got := NextTrigger(anchor, from)
	if !got.Equal(from.Add(14 * 24 * time.Hour)) {
		t.Fatalf("custom interval: got %s", got)
	}
}

func TestNextTriggerIsMonotonic(t *testing.T) {
	anchor := mustMonthly(t, 31, 0)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		next := NextTrigger(anchor, from)
		if !next.After(from) {
			t.Fatalf("trigger not strictly after from: %s -> %s", from, next)
		}
		from = next
	}
}

func TestAnchorValidation(t *testing.T) {
	if _, err := NewWeeklyAnchor(7, 0); err == nil {
		t.Fatal("day of week 7 must be rejected")
	}
	if _, err := NewMonthlyAnchor(0, 0); err == nil {
		t.Fatal("day of month 0 must be rejected")
	}
	if _, err := NewMonthlyAnchor(5, 24*60); err == nil {
		t.Fatal("minute of day past midnight must be rejected")
	}
	if _, err := NewCustomAnchor(0); err == nil {
		t.Fatal("zero interval must be rejected")
	}
}

func TestFromScheduleRejectsMismatchedAnchor(t *testing.T) {
	day := 3
	schedule := &models.PayoutSchedule{
		Frequency: enums.PayoutFrequencyWeekly,
	}
	if _, err := FromSchedule(schedule); err == nil {
		t.Fatal("weekly schedule without day of week must be rejected")
	}

	schedule.DayOfWeek = &day
	anchor, err := FromSchedule(schedule)
	if err != nil {
		t.Fatalf("FromSchedule: %v", err)
	}
	if anchor.Frequency() != enums.PayoutFrequencyWeekly {
		t.Fatalf("unexpected frequency %s", anchor.Frequency())
	}
}
