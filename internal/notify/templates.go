package notify

import (
	"fmt"
	"strings"

	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// OrderSummary renders the manifest the way both customers and admins see
// it: one line per item, then the total.
func OrderSummary(order *models.Order) string {
	var b strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s, %d pcs, %s€\n", i+1, item.Product, item.Quantity, item.LineTotal.String())
	}
	fmt.Fprintf(&b, "Total: %s€", order.TotalSum.String())
	return b.String()
}

// FinalizedClientMessage confirms a placed order to its owner.
func FinalizedClientMessage(order *models.Order) types.Renderable {
	return types.Text(fmt.Sprintf("✅ Your order has been placed.\n\n%s\n\nWe will notify you when it ships.", OrderSummary(order)))
}

// NewOrderAdminMessage announces a freshly placed order to the operators.
func NewOrderAdminMessage(order *models.Order) types.Renderable {
	return types.Text(fmt.Sprintf("📦 New order from %s\n\n%s", order.ClientPhone, OrderSummary(order)))
}

// StatusChangedMessage tells the customer their order moved to a new status.
func StatusChangedMessage(order *models.Order) types.Renderable {
	var body string
	switch order.Status {
	case enums.OrderStatusProcessing:
		body = "🔄 Your order is being processed."
	case enums.OrderStatusShipped:
		body = "🚚 Your order has shipped."
	case enums.OrderStatusDelivered:
		body = "📬 Your order has been delivered. Thank you!"
	case enums.OrderStatusCancelled:
		body = "❌ Your order has been cancelled."
	default:
		body = fmt.Sprintf("Your order status is now: %s.", order.Status)
	}
	return types.Text(body)
}

// TrackingMessage carries the tracking number and, when present, the URL.
func TrackingMessage(order *models.Order) types.Renderable {
	body := "🚚 Your order has shipped."
	if order.TrackingNumber != nil {
		body += fmt.Sprintf("\nTracking number: %s", *order.TrackingNumber)
	}
	if order.TrackingURL != nil {
		body += fmt.Sprintf("\nTrack it here: %s", *order.TrackingURL)
	}
	return types.Text(body)
}
