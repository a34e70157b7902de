package enums

import "fmt"

// TransferMethod selects the payment rail transfer speed, which drives the
// platform fee schedule.
type TransferMethod string

const (
	TransferMethodStandard  TransferMethod = "standard"
	TransferMethodExpedited TransferMethod = "expedited"
)

var validTransferMethods = []TransferMethod{
	TransferMethodStandard,
	TransferMethodExpedited,
}

// String implements fmt.Stringer.
func (m TransferMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m TransferMethod) IsValid() bool {
	for _, candidate := range validTransferMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseTransferMethod converts raw input into a TransferMethod.
func ParseTransferMethod(value string) (TransferMethod, error) {
	for _, candidate := range validTransferMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer method %q", value)
}
