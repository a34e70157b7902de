package enums

import "fmt"

// PayoutStatus tracks a scheduled payout through its disbursement lifecycle.
type PayoutStatus string

const (
	PayoutStatusPending     PayoutStatus = "pending"
	PayoutStatusProcessing  PayoutStatus = "processing"
	PayoutStatusCompleted   PayoutStatus = "completed"
	PayoutStatusFailed      PayoutStatus = "failed"
	PayoutStatusRetrying    PayoutStatus = "retrying"
	PayoutStatusFailedFinal PayoutStatus = "failed_final"
	PayoutStatusCanceled    PayoutStatus = "canceled"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusFailed,
	PayoutStatusRetrying,
	PayoutStatusFailedFinal,
	PayoutStatusCanceled,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition may occur.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailedFinal || s == PayoutStatusCanceled
}

// IsInFlight reports whether the payout occupies its schedule's single
// in-flight slot.
func (s PayoutStatus) IsInFlight() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusFailed, PayoutStatusRetrying:
		return true
	}
	return false
}

// IsCancelable reports whether an administrator may cancel the payout.
// Cancellation is disallowed once the transfer has been handed to the rail.
func (s PayoutStatus) IsCancelable() bool {
	return s == PayoutStatusPending || s == PayoutStatusFailed
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
