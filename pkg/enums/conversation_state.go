package enums

import "fmt"

// ConversationState drives the customer intake state machine. The source of
// truth lives on the user record so any instance can pick up the next turn.
type ConversationState string

const (
	ConversationStateIdle                   ConversationState = "idle"
	ConversationStateChoosingCategory       ConversationState = "choosing_category"
	ConversationStateChoosingProduct        ConversationState = "choosing_product"
	ConversationStateAwaitingCustomProduct  ConversationState = "awaiting_custom_product_name"
	ConversationStateAwaitingQuantity       ConversationState = "awaiting_quantity"
	ConversationStateAwaitingLineTotal      ConversationState = "awaiting_line_total"
	ConversationStateReviewingOrder         ConversationState = "reviewing_order"
	ConversationStateAwaitingNewPhone       ConversationState = "awaiting_new_phone"
)

var validConversationStates = []ConversationState{
	ConversationStateIdle,
	ConversationStateChoosingCategory,
	ConversationStateChoosingProduct,
	ConversationStateAwaitingCustomProduct,
	ConversationStateAwaitingQuantity,
	ConversationStateAwaitingLineTotal,
	ConversationStateReviewingOrder,
	ConversationStateAwaitingNewPhone,
}

// String implements fmt.Stringer.
func (s ConversationState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConversationState.
func (s ConversationState) IsValid() bool {
	for _, candidate := range validConversationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsBuilding reports whether the state permits a non-empty order buffer.
func (s ConversationState) IsBuilding() bool {
	switch s {
	case ConversationStateChoosingCategory,
		ConversationStateChoosingProduct,
		ConversationStateAwaitingCustomProduct,
		ConversationStateAwaitingQuantity,
		ConversationStateAwaitingLineTotal,
		ConversationStateReviewingOrder:
		return true
	}
	return false
}

// ParseConversationState converts raw input into a ConversationState,
// defaulting unknown legacy values to idle is the caller's business.
func ParseConversationState(value string) (ConversationState, error) {
	for _, candidate := range validConversationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation state %q", value)
}
