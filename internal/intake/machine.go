package intake

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paquetebot/paquetebot-backend/internal/catalog"
	"github.com/paquetebot/paquetebot-backend/internal/orders"
	"github.com/paquetebot/paquetebot-backend/pkg/db"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/phone"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Machine is the customer-facing conversation state machine. Handle mutates
// the user record in memory only; the caller persists it and delivers the
// replies, all under the per-user lock.
type Machine struct {
	catalog catalog.Repository
	orders  orders.Service
}

// NewMachine builds the intake state machine.
func NewMachine(catalogRepo catalog.Repository, orderSvc orders.Service) (*Machine, error) {
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &Machine{catalog: catalogRepo, orders: orderSvc}, nil
}

// Handle consumes one event against the user's current state. Invalid user
// input never returns an error; it re-prompts. Errors are reserved for
// dependency failures the caller should log and apologize for.
func (m *Machine) Handle(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	// "start order" restarts the flow from any state, clearing the buffer
	if event.Kind == types.EventKindStructuredChoice && event.ChoiceID == types.ChoiceStartOrder {
		return m.startOrder(ctx, user)
	}

	switch user.ConversationState {
	case enums.ConversationStateIdle:
		return m.handleIdle(ctx, user, event)
	case enums.ConversationStateChoosingCategory:
		return m.handleChoosingCategory(ctx, user, event)
	case enums.ConversationStateChoosingProduct:
		return m.handleChoosingProduct(ctx, user, event)
	case enums.ConversationStateAwaitingCustomProduct:
		return m.handleCustomProductName(user, event)
	case enums.ConversationStateAwaitingQuantity:
		return m.handleQuantity(user, event)
	case enums.ConversationStateAwaitingLineTotal:
		return m.handleLineTotal(user, event)
	case enums.ConversationStateReviewingOrder:
		return m.handleReviewing(ctx, user, event)
	case enums.ConversationStateAwaitingNewPhone:
		return m.handleNewPhone(user, event)
	}

	// unknown persisted state, recover to the menu
	user.ConversationState = enums.ConversationStateIdle
	return replies(mainMenu()), nil
}

func (m *Machine) startOrder(ctx context.Context, user *models.User) ([]types.Renderable, error) {
	user.OrderBuffer = nil
	user.PendingDraftID = nil

	categories, err := m.catalog.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	if len(categories) == 0 {
		user.ConversationState = enums.ConversationStateIdle
		return replies(types.Text("The catalog is empty right now, please try again later.")), nil
	}

	user.ConversationState = enums.ConversationStateChoosingCategory
	return replies(categoryList(categories)), nil
}

func (m *Machine) handleIdle(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind != types.EventKindStructuredChoice {
		// free text that reads as a phone number captures the contact
		// phone, typically on first contact
		if (user.Phone == nil || *user.Phone == "") && event.Text != "" {
			if normalized, err := phone.Normalize(event.Text); err == nil {
				user.Phone = &normalized
				return replies(types.Text("📱 Phone saved."), mainMenu()), nil
			}
		}
		return replies(mainMenu()), nil
	}

	switch {
	case event.ChoiceID == types.ChoiceMyShipments:
		list, err := m.orders.ListShipments(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return replies(shipmentsList(list)), nil

	case event.ChoiceID == types.ChoiceMyDrafts:
		list, err := m.orders.ListDrafts(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return replies(draftsList(list)), nil

	case event.ChoiceID == types.ChoiceChangePhone:
		user.ConversationState = enums.ConversationStateAwaitingNewPhone
		return replies(phonePrompt()), nil

	case strings.HasPrefix(event.ChoiceID, types.ChoicePrefixFinalizeDraft):
		return m.finalizeDraft(ctx, user, event.ChoiceID)

	case strings.HasPrefix(event.ChoiceID, types.ChoicePrefixEditDraft):
		return m.editDraft(ctx, user, event.ChoiceID)
	}

	return replies(mainMenu()), nil
}

func (m *Machine) finalizeDraft(ctx context.Context, user *models.User, choiceID string) ([]types.Renderable, error) {
	orderID, err := types.ChoiceUUIDArg(choiceID, types.ChoicePrefixFinalizeDraft)
	if err != nil {
		return replies(mainMenu()), nil
	}

	order, err := m.orders.FindByID(ctx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return replies(types.Text("That order no longer exists."), mainMenu()), nil
		}
		return nil, err
	}
	if order.UserID != user.ID {
		return replies(types.Text("That order no longer exists."), mainMenu()), nil
	}

	finalized, err := m.orders.Finalize(ctx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			return replies(types.Text("That order was already sent for processing.")), nil
		}
		return nil, err
	}

	// the session is saved after this turn, so the in-memory pending ref
	// must be dropped too or it would overwrite the cleared column
	if user.PendingDraftID != nil && *user.PendingDraftID == finalized.ID {
		user.PendingDraftID = nil
	}

	return replies(types.Text(fmt.Sprintf("🚀 Order sent for processing. Total: %s€.", finalized.TotalSum.String()))), nil
}

func (m *Machine) editDraft(ctx context.Context, user *models.User, choiceID string) ([]types.Renderable, error) {
	orderID, err := types.ChoiceUUIDArg(choiceID, types.ChoicePrefixEditDraft)
	if err != nil {
		return replies(mainMenu()), nil
	}

	order, err := m.orders.FindByID(ctx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return replies(types.Text("That draft no longer exists."), mainMenu()), nil
		}
		return nil, err
	}
	if order.UserID != user.ID || order.Status != enums.OrderStatusDraft {
		return replies(types.Text("That draft can no longer be edited."), mainMenu()), nil
	}

	user.OrderBuffer = append(models.LineItems(nil), order.Items...)
	user.PendingDraftID = &order.ID
	user.ConversationState = enums.ConversationStateReviewingOrder
	return replies(reviewPrompt(user.OrderBuffer)), nil
}

func (m *Machine) handleChoosingCategory(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind == types.EventKindStructuredChoice {
		if categoryID, err := types.ChoiceUUIDArg(event.ChoiceID, types.ChoicePrefixCategory); err == nil {
			category, err := m.catalog.FindCategory(ctx, categoryID)
			if err != nil {
				if db.IsNotFound(err) {
					return m.resetWithMessage(user, "That category is gone from the catalog."), nil
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
			}
			products, err := m.catalog.ListProductsByCategory(ctx, category.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
			}
			user.ConversationState = enums.ConversationStateChoosingProduct
			return replies(productList(category, products)), nil
		}
	}

	categories, err := m.catalog.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return replies(categoryList(categories)), nil
}

func (m *Machine) handleChoosingProduct(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind == types.EventKindStructuredChoice {
		if event.ChoiceID == types.ChoiceCustomProduct {
			user.ConversationState = enums.ConversationStateAwaitingCustomProduct
			return replies(types.Text("Send the product name.")), nil
		}
		if productID, err := types.ChoiceUUIDArg(event.ChoiceID, types.ChoicePrefixProduct); err == nil {
			product, err := m.catalog.FindProduct(ctx, productID)
			if err != nil {
				if db.IsNotFound(err) {
					return m.resetWithMessage(user, "That product is gone from the catalog."), nil
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			user.OrderBuffer = append(user.OrderBuffer, models.LineItem{Product: product.Name})
			user.ConversationState = enums.ConversationStateAwaitingQuantity
			return replies(quantityPrompt(product.Name)), nil
		}
	}

	return replies(types.Text("Pick a product from the list, or enter your own.")), nil
}

func (m *Machine) handleCustomProductName(user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	name := strings.TrimSpace(event.Text)
	if event.Kind != types.EventKindFreeText || name == "" {
		return replies(types.Text("Send the product name as plain text.")), nil
	}

	user.OrderBuffer = append(user.OrderBuffer, models.LineItem{Product: name})
	user.ConversationState = enums.ConversationStateAwaitingQuantity
	return replies(quantityPrompt(name)), nil
}

func (m *Machine) handleQuantity(user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	last := lastItem(user)
	if last == nil {
		return m.resetWithMessage(user, "Something went wrong with your order, let's start over."), nil
	}

	if event.Kind == types.EventKindFreeText {
		qty, err := strconv.Atoi(strings.TrimSpace(event.Text))
		if err == nil && qty > 0 {
			last.Quantity = qty
			user.ConversationState = enums.ConversationStateAwaitingLineTotal
			return replies(lineTotalPrompt(last.Product)), nil
		}
	}

	return replies(types.Text("Quantity must be a whole number greater than zero. Try again.")), nil
}

func (m *Machine) handleLineTotal(user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	last := lastItem(user)
	if last == nil {
		return m.resetWithMessage(user, "Something went wrong with your order, let's start over."), nil
	}

	if event.Kind == types.EventKindFreeText {
		raw := strings.ReplaceAll(strings.TrimSpace(event.Text), ",", ".")
		total, err := decimal.NewFromString(raw)
		if err == nil && !total.IsNegative() {
			last.LineTotal = total
			user.ConversationState = enums.ConversationStateReviewingOrder
			return replies(reviewPrompt(user.OrderBuffer)), nil
		}
	}

	return replies(types.Text("Price must be a non-negative number, like 9.99 or 9,99. Try again.")), nil
}

func (m *Machine) handleReviewing(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind != types.EventKindStructuredChoice {
		return replies(reviewPrompt(user.OrderBuffer)), nil
	}

	switch {
	case event.ChoiceID == types.ChoiceAddItem:
		categories, err := m.catalog.ListCategories(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
		}
		user.ConversationState = enums.ConversationStateChoosingCategory
		return replies(categoryList(categories)), nil

	case strings.HasPrefix(event.ChoiceID, types.ChoicePrefixRemoveItem):
		arg, _ := types.ChoiceArg(event.ChoiceID, types.ChoicePrefixRemoveItem)
		index, err := strconv.Atoi(arg)
		if err != nil || index < 0 || index >= len(user.OrderBuffer) {
			return replies(types.Text("That item is no longer in the order."), reviewPrompt(user.OrderBuffer)), nil
		}
		user.OrderBuffer = append(user.OrderBuffer[:index], user.OrderBuffer[index+1:]...)
		return replies(reviewPrompt(user.OrderBuffer)), nil

	case event.ChoiceID == types.ChoiceCancelOrder:
		user.OrderBuffer = nil
		user.PendingDraftID = nil
		user.ConversationState = enums.ConversationStateIdle
		return replies(types.Text("❌ Order cancelled."), mainMenu()), nil

	case event.ChoiceID == types.ChoiceConfirmOrder:
		return m.confirmOrder(ctx, user)
	}

	return replies(reviewPrompt(user.OrderBuffer)), nil
}

func (m *Machine) confirmOrder(ctx context.Context, user *models.User) ([]types.Renderable, error) {
	if len(user.OrderBuffer) == 0 {
		return replies(types.Text("Your order is empty. Add an item first.")), nil
	}

	if user.Phone == nil || *user.Phone == "" {
		user.ConversationState = enums.ConversationStateAwaitingNewPhone
		return replies(types.Text("Almost there. We need a contact phone for the shipment."), phonePrompt()), nil
	}

	order, err := m.orders.UpsertDraft(ctx, user, user.OrderBuffer)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			return replies(types.Text(pkgerrors.As(err).Message()), reviewPrompt(user.OrderBuffer)), nil
		}
		return nil, err
	}

	user.OrderBuffer = nil
	user.ConversationState = enums.ConversationStateIdle
	return replies(draftSaved(order)), nil
}

func (m *Machine) handleNewPhone(user *models.User, event types.IntakeEvent) ([]types.Renderable, error) {
	if event.Kind != types.EventKindFreeText {
		return replies(phonePrompt()), nil
	}

	normalized, err := phone.Normalize(event.Text)
	if err != nil {
		return replies(types.Text("That doesn't look like a phone number."), phonePrompt()), nil
	}

	user.Phone = &normalized
	if len(user.OrderBuffer) > 0 {
		// return to the interrupted review so the user can confirm
		user.ConversationState = enums.ConversationStateReviewingOrder
		return replies(types.Text("📱 Phone saved."), reviewPrompt(user.OrderBuffer)), nil
	}
	user.ConversationState = enums.ConversationStateIdle
	return replies(types.Text("📱 Phone saved."), mainMenu()), nil
}

func (m *Machine) resetWithMessage(user *models.User, message string) []types.Renderable {
	user.ConversationState = enums.ConversationStateIdle
	user.OrderBuffer = nil
	return replies(types.Text(message), mainMenu())
}

func lastItem(user *models.User) *models.LineItem {
	if len(user.OrderBuffer) == 0 {
		return nil
	}
	return &user.OrderBuffer[len(user.OrderBuffer)-1]
}

func replies(msgs ...types.Renderable) []types.Renderable {
	return msgs
}
