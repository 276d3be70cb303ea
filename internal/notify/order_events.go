package notify

import (
	"context"
	"fmt"

	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
)

// OrderEvents adapts the dispatcher to the order lifecycle's notifier hook.
// Deliveries run off the caller's goroutine so the per-user lock held around
// a state change is never extended by slow channel APIs; the detached context
// survives the originating webhook request.
type OrderEvents struct {
	dispatcher *Dispatcher

	// spawn is swapped for an inline runner in tests
	spawn func(fn func())
}

// NewOrderEvents wires order lifecycle events to outbound notifications.
func NewOrderEvents(dispatcher *Dispatcher) (*OrderEvents, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	return &OrderEvents{
		dispatcher: dispatcher,
		spawn:      func(fn func()) { go fn() },
	}, nil
}

func (e *OrderEvents) OrderFinalized(ctx context.Context, order *models.Order) {
	detached := context.WithoutCancel(ctx)
	e.spawn(func() {
		e.dispatcher.Notify(detached, order.UserID, FinalizedClientMessage(order))
		e.dispatcher.NotifyAdmins(detached, NewOrderAdminMessage(order))
	})
}

func (e *OrderEvents) OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	detached := context.WithoutCancel(ctx)
	e.spawn(func() {
		e.dispatcher.Notify(detached, order.UserID, StatusChangedMessage(order))
	})
}

func (e *OrderEvents) TrackingAssigned(ctx context.Context, order *models.Order) {
	detached := context.WithoutCancel(ctx)
	e.spawn(func() {
		e.dispatcher.Notify(detached, order.UserID, TrackingMessage(order))
	})
}
