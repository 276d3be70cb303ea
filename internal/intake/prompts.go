package intake

import (
	"fmt"
	"strconv"

	"github.com/paquetebot/paquetebot-backend/internal/notify"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

func mainMenu() types.Renderable {
	return types.Text("What would you like to do?").
		WithChoice(types.ChoiceStartOrder, "🛒 New order").
		WithChoice(types.ChoiceMyShipments, "📦 My shipments").
		WithChoice(types.ChoiceMyDrafts, "📝 My drafts").
		WithChoice(types.ChoiceChangePhone, "📱 Change phone")
}

func categoryList(categories []models.Category) types.Renderable {
	msg := types.Text("Pick a category:")
	for _, c := range categories {
		msg = msg.WithChoice(types.ChoicePrefixCategory+c.ID.String(), c.Label())
	}
	return msg
}

func productList(category *models.Category, products []models.Product) types.Renderable {
	msg := types.Text(fmt.Sprintf("Pick a product from %s:", category.Label()))
	for _, p := range products {
		msg = msg.WithChoice(types.ChoicePrefixProduct+p.ID.String(), p.Name)
	}
	return msg.WithChoice(types.ChoiceCustomProduct, "➕ Enter your own product")
}

func quantityPrompt(product string) types.Renderable {
	return types.Text(fmt.Sprintf("How many of %q? Send a whole number.", product))
}

func lineTotalPrompt(product string) types.Renderable {
	return types.Text(fmt.Sprintf("What is the total price for %q, in €? For example: 9.99", product))
}

func reviewPrompt(items models.LineItems) types.Renderable {
	body := "Your order so far:\n"
	for i, item := range items {
		body += fmt.Sprintf("%d. %s, %d pcs, %s€\n", i+1, item.Product, item.Quantity, item.LineTotal.String())
	}
	body += fmt.Sprintf("Total: %s€", items.Sum().String())

	msg := types.Text(body).
		WithChoice(types.ChoiceAddItem, "➕ Add another item")
	for i := range items {
		msg = msg.WithChoice(types.ChoicePrefixRemoveItem+strconv.Itoa(i), fmt.Sprintf("🗑 Remove item %d", i+1))
	}
	return msg.
		WithChoice(types.ChoiceConfirmOrder, "✅ Save order").
		WithChoice(types.ChoiceCancelOrder, "❌ Cancel")
}

func draftSaved(order *models.Order) types.Renderable {
	return types.Text(fmt.Sprintf("💾 Draft saved.\n\n%s\n\nFinalize it to send it for processing.", notify.OrderSummary(order))).
		WithChoice(types.ChoicePrefixFinalizeDraft+order.ID.String(), "🚀 Finalize order").
		WithChoice(types.ChoiceMyDrafts, "📝 My drafts")
}

func shipmentsList(orders []models.Order) types.Renderable {
	if len(orders) == 0 {
		return types.Text("You have no shipments yet.").
			WithChoice(types.ChoiceStartOrder, "🛒 New order")
	}
	body := "Your shipments:\n"
	for _, o := range orders {
		body += fmt.Sprintf("\n• %s, %s€, %s", o.CreatedAt.Format("02.01.2006"), o.TotalSum.String(), o.Status)
		if o.TrackingNumber != nil {
			body += fmt.Sprintf("\n  Tracking: %s", *o.TrackingNumber)
		}
	}
	return types.Text(body)
}

func draftsList(orders []models.Order) types.Renderable {
	if len(orders) == 0 {
		return types.Text("You have no drafts.").
			WithChoice(types.ChoiceStartOrder, "🛒 New order")
	}
	msg := types.Text("Your drafts:")
	for _, o := range orders {
		label := fmt.Sprintf("%s, %s€", o.CreatedAt.Format("02.01.2006"), o.TotalSum.String())
		msg = msg.
			WithChoice(types.ChoicePrefixEditDraft+o.ID.String(), "✏️ Edit "+label).
			WithChoice(types.ChoicePrefixFinalizeDraft+o.ID.String(), "🚀 Finalize "+label)
	}
	return msg
}

func phonePrompt() types.Renderable {
	return types.Text("Please send your contact phone number (at least nine digits).")
}
