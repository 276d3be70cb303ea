package enums

import "fmt"

// AdminState drives the privileged order-management machine. It runs in its
// own namespace so an admin's customer conversation is never disturbed.
type AdminState string

const (
	AdminStateIdle                   AdminState = "idle"
	AdminStateSearchingByPhone       AdminState = "searching_by_phone"
	AdminStateManagingOrder          AdminState = "managing_order"
	AdminStateAwaitingTrackingNumber AdminState = "awaiting_tracking_number"
	AdminStateAwaitingTrackingURL    AdminState = "awaiting_tracking_url"
)

var validAdminStates = []AdminState{
	AdminStateIdle,
	AdminStateSearchingByPhone,
	AdminStateManagingOrder,
	AdminStateAwaitingTrackingNumber,
	AdminStateAwaitingTrackingURL,
}

// String implements fmt.Stringer.
func (s AdminState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AdminState.
func (s AdminState) IsValid() bool {
	for _, candidate := range validAdminStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Engaged reports whether the admin machine currently owns the conversation.
func (s AdminState) Engaged() bool {
	return s != AdminStateIdle && s.IsValid()
}

// ParseAdminState converts raw input into an AdminState.
func ParseAdminState(value string) (AdminState, error) {
	for _, candidate := range validAdminStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin state %q", value)
}
