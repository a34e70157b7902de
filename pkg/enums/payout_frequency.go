package enums

import "fmt"

// PayoutFrequency is the cadence class of a payout schedule.
type PayoutFrequency string

const (
	PayoutFrequencyWeekly  PayoutFrequency = "weekly"
	PayoutFrequencyMonthly PayoutFrequency = "monthly"
	PayoutFrequencyCustom  PayoutFrequency = "custom"
)

var validPayoutFrequencies = []PayoutFrequency{
	PayoutFrequencyWeekly,
	PayoutFrequencyMonthly,
	PayoutFrequencyCustom,
}

// String implements fmt.Stringer.
func (f PayoutFrequency) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f PayoutFrequency) IsValid() bool {
	for _, candidate := range validPayoutFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParsePayoutFrequency converts raw input into a PayoutFrequency.
func ParsePayoutFrequency(value string) (PayoutFrequency, error) {
	for _, candidate := range validPayoutFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout frequency %q", value)
}
