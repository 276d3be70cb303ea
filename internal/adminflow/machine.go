package adminflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/paquetebot/paquetebot-backend/internal/orders"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/phone"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Machine is the privileged order-management state machine. It runs in its
// own state namespace on the user record so an admin's customer conversation
// survives a detour into the panel.
type Machine struct {
	orders orders.Service
}

// NewMachine builds the admin workflow machine.
func NewMachine(orderSvc orders.Service) (*Machine, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &Machine{orders: orderSvc}, nil
}

// Handle consumes one event against the admin's current state. Non-admins
// are rejected regardless of state.
func (m *Machine) Handle(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if !user.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin workflow requires the admin role")
	}

	if event.Kind == types.EventKindStructuredChoice {
		switch event.ChoiceID {
		case types.ChoiceAdminCancel:
			m.reset(user)
			return replies(adminMenu()), nil
		case types.ChoiceAdminFindOrder:
			m.reset(user)
			user.AdminState = enums.AdminStateSearchingByPhone
			return replies(phoneSearchPrompt()), nil
		}
	}

	switch user.AdminState {
	case enums.AdminStateSearchingByPhone:
		return m.handleSearchingByPhone(ctx, user, event)
	case enums.AdminStateManagingOrder:
		return m.handleManagingOrder(ctx, user, event)
	case enums.AdminStateAwaitingTrackingNumber:
		return m.handleTrackingNumber(user, event)
	case enums.AdminStateAwaitingTrackingURL:
		return m.handleTrackingURL(ctx, user, event)
	}

	// idle: "search <phone>" free text is a shortcut into the phone search
	if event.Kind == types.EventKindFreeText {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(event.Text), "search "); ok {
			user.AdminState = enums.AdminStateSearchingByPhone
			return m.lookupByPhone(ctx, user, rest)
		}
	}

	return replies(adminMenu()), nil
}

func (m *Machine) handleSearchingByPhone(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind != types.EventKindFreeText {
		return replies(phoneSearchPrompt()), nil
	}
	return m.lookupByPhone(ctx, user, event.Text)
}

func (m *Machine) lookupByPhone(ctx context.Context, user *models.User, raw string) ([]types.Renderable, error) {
	normalized, err := phone.Normalize(raw)
	if err != nil {
		return replies(types.Text("That doesn't look like a phone number."), phoneSearchPrompt()), nil
	}

	order, err := m.orders.FindLatestByPhone(ctx, normalized)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return replies(types.Text(fmt.Sprintf("No orders found for %s.", normalized)), phoneSearchPrompt()), nil
		}
		return nil, err
	}

	user.PendingAdminOrderID = &order.ID
	user.AdminState = enums.AdminStateManagingOrder
	return replies(orderPanel(order)), nil
}

func (m *Machine) handleManagingOrder(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	orderID, out := m.pendingOrder(user)
	if out != nil {
		return out, nil
	}

	if event.Kind == types.EventKindStructuredChoice {
		switch event.ChoiceID {
		case types.ChoiceAdminSetTracking:
			user.AdminState = enums.AdminStateAwaitingTrackingNumber
			return replies(trackingNumberPrompt()), nil

		case types.ChoiceAdminMarkDelivered:
			return m.transition(ctx, user, enums.OrderStatusDelivered)

		case types.ChoiceAdminSetProcessing:
			return m.transition(ctx, user, enums.OrderStatusProcessing)
		}
	}

	order, err := m.orders.FindByID(ctx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			m.reset(user)
			return replies(types.Text("That order no longer exists."), adminMenu()), nil
		}
		return nil, err
	}
	return replies(orderPanel(order)), nil
}

func (m *Machine) transition(ctx context.Context, user *models.User, target enums.OrderStatus) ([]types.Renderable, error) {
	orderID, out := m.pendingOrder(user)
	if out != nil {
		return out, nil
	}

	order, err := m.orders.TransitionStatus(ctx, orderID, target)
	if err != nil {
		switch {
		case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict):
			m.reset(user)
			return replies(types.Text(fmt.Sprintf("Cannot move that order to %s.", target)), adminMenu()), nil
		case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
			m.reset(user)
			return replies(types.Text("That order no longer exists."), adminMenu()), nil
		}
		return nil, err
	}

	m.reset(user)
	return replies(types.Text(fmt.Sprintf("Order %s is now %s.", order.ID.String(), order.Status)), adminMenu()), nil
}

func (m *Machine) handleTrackingNumber(user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if _, out := m.pendingOrder(user); out != nil {
		return out, nil
	}

	if event.Kind == types.EventKindFreeText {
		number := strings.TrimSpace(event.Text)
		if len(number) >= 5 {
			user.PendingTrackingNumber = &number
			user.AdminState = enums.AdminStateAwaitingTrackingURL
			return replies(trackingURLPrompt()), nil
		}
	}

	return replies(types.Text("Tracking numbers are at least 5 characters."), trackingNumberPrompt()), nil
}

func (m *Machine) handleTrackingURL(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	orderID, out := m.pendingOrder(user)
	if out != nil {
		return out, nil
	}
	if user.PendingTrackingNumber == nil {
		m.reset(user)
		return replies(adminMenu()), nil
	}

	if event.Kind != types.EventKindFreeText {
		return replies(trackingURLPrompt()), nil
	}

	raw := strings.TrimSpace(event.Text)
	var url string
	switch {
	case strings.EqualFold(raw, "none"):
		url = ""
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		url = raw
	default:
		return replies(types.Text("Send a link starting with http:// or https://, or \"none\"."), trackingURLPrompt()), nil
	}

	order, err := m.orders.SetTracking(ctx, orderID, *user.PendingTrackingNumber, url)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			m.reset(user)
			return replies(types.Text("That order no longer exists."), adminMenu()), nil
		}
		return nil, err
	}

	m.reset(user)
	return replies(types.Text(fmt.Sprintf("🚚 Tracking %s saved, order %s marked shipped.", *order.TrackingNumber, order.ID.String())), adminMenu()), nil
}

// pendingOrder returns the order under management, or a recovery reply when
// the scratch reference is gone (stale button after a restart).
func (m *Machine) pendingOrder(user *models.User) (uuid.UUID, []types.Renderable) {
	if user.PendingAdminOrderID == nil {
		m.reset(user)
		return uuid.Nil, replies(types.Text("No order selected."), adminMenu())
	}
	return *user.PendingAdminOrderID, nil
}

func (m *Machine) reset(user *models.User) {
	user.AdminState = enums.AdminStateIdle
	user.PendingAdminOrderID = nil
	user.PendingTrackingNumber = nil
}

func replies(msgs ...types.Renderable) []types.Renderable {
	return msgs
}
