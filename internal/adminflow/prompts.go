package adminflow

import (
	"fmt"

	"github.com/paquetebot/paquetebot-backend/internal/notify"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

func adminMenu() types.Renderable {
	return types.Text("Admin panel.").
		WithChoice(types.ChoiceAdminFindOrder, "🔍 Find order by phone")
}

func phoneSearchPrompt() types.Renderable {
	return types.Text("Send the customer's phone number.").
		WithChoice(types.ChoiceAdminCancel, "✖️ Cancel")
}

func orderPanel(order *models.Order) types.Renderable {
	body := fmt.Sprintf("Order %s\nPhone: %s\nStatus: %s\n\n%s",
		order.ID.String(), order.ClientPhone, order.Status,
		notify.OrderSummary(order))
	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		body += "\nTracking: " + *order.TrackingNumber
	}
	return types.Text(body).
		WithChoice(types.ChoiceAdminSetTracking, "🚚 Set tracking").
		WithChoice(types.ChoiceAdminSetProcessing, "⏳ Mark processing").
		WithChoice(types.ChoiceAdminMarkDelivered, "✅ Mark delivered").
		WithChoice(types.ChoiceAdminCancel, "✖️ Done")
}

func trackingNumberPrompt() types.Renderable {
	return types.Text("Send the tracking number (at least 5 characters).").
		WithChoice(types.ChoiceAdminCancel, "✖️ Cancel")
}

func trackingURLPrompt() types.Renderable {
	return types.Text("Send the tracking URL, or \"none\" if there is no link.").
		WithChoice(types.ChoiceAdminCancel, "✖️ Cancel")
}
