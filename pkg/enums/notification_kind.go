package enums

import "fmt"

// NotificationKind classifies payee-facing payout notifications.
type NotificationKind string

const (
	NotificationKindAdvance     NotificationKind = "advance"
	NotificationKindCompleted   NotificationKind = "completed"
	NotificationKindFailedFinal NotificationKind = "failed_final"
	NotificationKindConfigError NotificationKind = "config_error"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindAdvance,
	NotificationKindCompleted,
	NotificationKindFailedFinal,
	NotificationKindConfigError,
}

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
