package intake

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/paquetebot/paquetebot-backend/internal/orders"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

func notFoundErr() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func stateConflictErr() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not a draft")
}

type fakeCatalog struct {
	categories []models.Category
	products   map[uuid.UUID][]models.Product
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeCatalog) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCatalog) ListProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	return f.products[categoryID], nil
}

func (f *fakeCatalog) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	for _, list := range f.products {
		for _, p := range list {
			if p.ID == id {
				return &p, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// fakeOrders keeps one draft per user in memory, mirroring the idempotent
// upsert contract.
type fakeOrders struct {
	drafts      map[uuid.UUID]*models.Order
	upsertCalls int
	finalized   []uuid.UUID
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{drafts: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrders) UpsertDraft(ctx context.Context, user *models.User, items models.LineItems) (*models.Order, error) {
	f.upsertCalls++
	var order *models.Order
	if user.PendingDraftID != nil {
		order = f.drafts[*user.PendingDraftID]
	}
	if order == nil || order.Status != enums.OrderStatusDraft {
		order = &models.Order{ID: uuid.New(), UserID: user.ID, Status: enums.OrderStatusDraft}
		f.drafts[order.ID] = order
		user.PendingDraftID = &order.ID
	}
	order.Items = append(models.LineItems(nil), items...)
	order.TotalSum = items.Sum()
	if user.Phone != nil {
		order.ClientPhone = *user.Phone
	}
	return order, nil
}

func (f *fakeOrders) Finalize(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.drafts[orderID]
	if !ok {
		return nil, notFoundErr()
	}
	if order.Status != enums.OrderStatusDraft {
		return nil, stateConflictErr()
	}
	order.Status = enums.OrderStatusProcessing
	f.finalized = append(f.finalized, orderID)
	return order, nil
}

func (f *fakeOrders) TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	return nil, nil
}

func (f *fakeOrders) SetTracking(ctx context.Context, orderID uuid.UUID, number, url string) (*models.Order, error) {
	return nil, nil
}

func (f *fakeOrders) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if order, ok := f.drafts[orderID]; ok {
		return order, nil
	}
	return nil, notFoundErr()
}

func (f *fakeOrders) FindLatestByPhone(ctx context.Context, phone string) (*models.Order, error) {
	return nil, notFoundErr()
}

func (f *fakeOrders) ListShipments(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.drafts {
		if o.UserID == userID && o.Status != enums.OrderStatusDraft {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListDrafts(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.drafts {
		if o.UserID == userID && o.Status == enums.OrderStatusDraft {
			out = append(out, *o)
		}
	}
	return out, nil
}

var _ orders.Service = (*fakeOrders)(nil)

func testCatalog() (*fakeCatalog, models.Category, models.Product) {
	category := models.Category{ID: uuid.New(), Name: "Clothing", Emoji: "🧥"}
	product := models.Product{ID: uuid.New(), CategoryID: category.ID, Name: "Jacket"}
	return &fakeCatalog{
		categories: []models.Category{category},
		products:   map[uuid.UUID][]models.Product{category.ID: {product}},
	}, category, product
}

func newTestMachine(t *testing.T, cat *fakeCatalog, ord orders.Service) *Machine {
	t.Helper()
	m, err := NewMachine(cat, ord)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func choice(id string) types.IntakeEvent {
	return types.IntakeEvent{Kind: types.EventKindStructuredChoice, ChoiceID: id}
}

func text(body string) types.IntakeEvent {
	return types.IntakeEvent{Kind: types.EventKindFreeText, Text: body}
}

func customerWithPhone() *models.User {
	p := "+34600000000"
	return &models.User{
		ID:                uuid.New(),
		Phone:             &p,
		ConversationState: enums.ConversationStateIdle,
	}
}

func drive(t *testing.T, m *Machine, user *models.User, events ...types.IntakeEvent) []types.Renderable {
	t.Helper()
	var last []types.Renderable
	for _, event := range events {
		out, err := m.Handle(context.Background(), user, event)
		if err != nil {
			t.Fatalf("Handle(%+v): %v", event, err)
		}
		last = out
	}
	return last
}

func TestFullIntakeFlowCreatesDraft(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("3"),
		text("9.99"),
		choice(types.ChoiceConfirmOrder),
	)

	if user.ConversationState != enums.ConversationStateIdle {
		t.Fatalf("expected idle after confirm, got %s", user.ConversationState)
	}
	if len(user.OrderBuffer) != 0 {
		t.Fatal("expected buffer cleared after confirm")
	}
	if user.PendingDraftID == nil {
		t.Fatal("expected pending draft reference")
	}

	draft := ord.drafts[*user.PendingDraftID]
	if draft == nil {
		t.Fatal("expected a persisted draft")
	}
	if len(draft.Items) != 1 || draft.Items[0].Product != "Jacket" || draft.Items[0].Quantity != 3 {
		t.Fatalf("unexpected draft items: %+v", draft.Items)
	}
	if !draft.TotalSum.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("expected total 9.99, got %s", draft.TotalSum)
	}
}

func TestSecondItemReusesSameDraft(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("3"),
		text("9.99"),
		choice(types.ChoiceConfirmOrder),
	)
	firstDraftID := *user.PendingDraftID

	// reopen the draft, add a custom item, confirm again
	drive(t, m, user,
		choice(types.ChoicePrefixEditDraft+firstDraftID.String()),
		choice(types.ChoiceAddItem),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoiceCustomProduct),
		text("Gift box"),
		text("1"),
		text("5,00"),
		choice(types.ChoiceConfirmOrder),
	)

	if len(ord.drafts) != 1 {
		t.Fatalf("expected one draft total, got %d", len(ord.drafts))
	}
	draft := ord.drafts[firstDraftID]
	if len(draft.Items) != 2 {
		t.Fatalf("expected two items on the same draft, got %d", len(draft.Items))
	}
	if !draft.TotalSum.Equal(decimal.RequireFromString("14.99")) {
		t.Fatalf("expected total 14.99, got %s", draft.TotalSum)
	}
}

func TestInvalidQuantitySelfLoops(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
	)

	for _, bad := range []string{"abc", "0", "-2", "1.5"} {
		drive(t, m, user, text(bad))
		if user.ConversationState != enums.ConversationStateAwaitingQuantity {
			t.Fatalf("expected self-loop on %q, got state %s", bad, user.ConversationState)
		}
	}

	drive(t, m, user, text("2"))
	if user.ConversationState != enums.ConversationStateAwaitingLineTotal {
		t.Fatalf("expected transition on valid quantity, got %s", user.ConversationState)
	}
}

func TestInvalidLineTotalSelfLoops(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("2"),
	)

	for _, bad := range []string{"abc", "-1", "9,99,9"} {
		drive(t, m, user, text(bad))
		if user.ConversationState != enums.ConversationStateAwaitingLineTotal {
			t.Fatalf("expected self-loop on %q, got state %s", bad, user.ConversationState)
		}
	}

	drive(t, m, user, text("9,99"))
	if user.ConversationState != enums.ConversationStateReviewingOrder {
		t.Fatalf("expected review after valid total, got %s", user.ConversationState)
	}
	if !user.OrderBuffer[0].LineTotal.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("expected comma accepted as decimal separator, got %s", user.OrderBuffer[0].LineTotal)
	}
}

func TestConfirmWithEmptyBufferRejected(t *testing.T) {
	cat, _, _ := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)

	user := customerWithPhone()
	user.ConversationState = enums.ConversationStateReviewingOrder

	out := drive(t, m, user, choice(types.ChoiceConfirmOrder))

	if user.ConversationState != enums.ConversationStateReviewingOrder {
		t.Fatalf("expected state unchanged, got %s", user.ConversationState)
	}
	if ord.upsertCalls != 0 {
		t.Fatal("expected no draft created for empty buffer")
	}
	if len(out) == 0 {
		t.Fatal("expected a rejection message")
	}
}

func TestRemoveItemAndOutOfRange(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("2"),
		text("4.00"),
	)

	drive(t, m, user, choice(types.ChoicePrefixRemoveItem+strconv.Itoa(5)))
	if len(user.OrderBuffer) != 1 {
		t.Fatal("expected out-of-range removal to be a no-op")
	}
	if user.ConversationState != enums.ConversationStateReviewingOrder {
		t.Fatalf("expected self-loop, got %s", user.ConversationState)
	}

	drive(t, m, user, choice(types.ChoicePrefixRemoveItem+"0"))
	if len(user.OrderBuffer) != 0 {
		t.Fatal("expected item removed")
	}
}

func TestCancelClearsBufferAndPendingDraft(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("2"),
		text("4.00"),
		choice(types.ChoiceCancelOrder),
	)

	if user.ConversationState != enums.ConversationStateIdle {
		t.Fatalf("expected idle after cancel, got %s", user.ConversationState)
	}
	if len(user.OrderBuffer) != 0 || user.PendingDraftID != nil {
		t.Fatal("expected buffer and pending draft cleared")
	}
}

func TestVanishedCategoryResetClearsBuffer(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	// a category removed mid-flow resets to the menu; the half-built
	// buffer must not survive into idle
	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("2"),
		text("5.00"),
		choice(types.ChoiceAddItem),
		choice(types.ChoicePrefixCategory+uuid.New().String()),
	)

	if user.ConversationState != enums.ConversationStateIdle {
		t.Fatalf("expected reset to idle, got %s", user.ConversationState)
	}
	if len(user.OrderBuffer) != 0 {
		t.Fatalf("expected buffer cleared on reset, got %d items", len(user.OrderBuffer))
	}
}

func TestConfirmWithoutPhoneCapturesPhoneFirst(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)

	user := &models.User{ID: uuid.New(), ConversationState: enums.ConversationStateIdle}

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("1"),
		text("9.99"),
		choice(types.ChoiceConfirmOrder),
	)

	if user.ConversationState != enums.ConversationStateAwaitingNewPhone {
		t.Fatalf("expected phone capture, got %s", user.ConversationState)
	}
	if ord.upsertCalls != 0 {
		t.Fatal("expected no draft before phone capture")
	}

	// invalid phone self-loops, valid phone returns to review
	drive(t, m, user, text("123"))
	if user.ConversationState != enums.ConversationStateAwaitingNewPhone {
		t.Fatal("expected self-loop on short phone")
	}

	drive(t, m, user, text("+34 600 000 000"), choice(types.ChoiceConfirmOrder))
	if user.Phone == nil || *user.Phone != "+34600000000" {
		t.Fatalf("expected normalized phone, got %v", user.Phone)
	}
	if ord.upsertCalls != 1 {
		t.Fatalf("expected confirm to succeed after capture, got %d upserts", ord.upsertCalls)
	}
}

func TestIdleFreeTextPhoneIsCaptured(t *testing.T) {
	cat, _, _ := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)

	user := &models.User{ID: uuid.New(), ConversationState: enums.ConversationStateIdle}

	drive(t, m, user, text("600 11 22 33"))
	if user.Phone == nil || *user.Phone != "+600112233" {
		t.Fatalf("expected first-contact phone captured, got %v", user.Phone)
	}
	if user.ConversationState != enums.ConversationStateIdle {
		t.Fatalf("expected idle after capture, got %s", user.ConversationState)
	}

	// an existing phone is not silently overwritten by chatter
	drive(t, m, user, text("600999888"))
	if *user.Phone != "+600112233" {
		t.Fatalf("expected phone unchanged, got %v", *user.Phone)
	}
}

func TestStartOrderRestartsFromAnyState(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("2"),
		choice(types.ChoiceStartOrder),
	)

	if user.ConversationState != enums.ConversationStateChoosingCategory {
		t.Fatalf("expected restart into category selection, got %s", user.ConversationState)
	}
	if len(user.OrderBuffer) != 0 {
		t.Fatal("expected buffer cleared on restart")
	}
}

func TestFinalizeDraftFromMenu(t *testing.T) {
	cat, category, product := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)
	user := customerWithPhone()

	drive(t, m, user,
		choice(types.ChoiceStartOrder),
		choice(types.ChoicePrefixCategory+category.ID.String()),
		choice(types.ChoicePrefixProduct+product.ID.String()),
		text("3"),
		text("9.99"),
		choice(types.ChoiceConfirmOrder),
	)
	draftID := *user.PendingDraftID

	drive(t, m, user, choice(types.ChoicePrefixFinalizeDraft+draftID.String()))
	if len(ord.finalized) != 1 || ord.finalized[0] != draftID {
		t.Fatalf("expected draft finalized, got %v", ord.finalized)
	}
	if user.PendingDraftID != nil {
		t.Fatalf("expected pending draft ref cleared after finalize, got %v", user.PendingDraftID)
	}

	// finalizing again reports the conflict instead of erroring
	out := drive(t, m, user, choice(types.ChoicePrefixFinalizeDraft+draftID.String()))
	if len(out) == 0 {
		t.Fatal("expected a conflict message")
	}
	if len(ord.finalized) != 1 {
		t.Fatal("expected no second finalize")
	}
}

func TestFinalizeSomeoneElsesDraftRejected(t *testing.T) {
	cat, _, _ := testCatalog()
	ord := newFakeOrders()
	m := newTestMachine(t, cat, ord)

	other := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusDraft}
	ord.drafts[other.ID] = other

	user := customerWithPhone()
	drive(t, m, user, choice(types.ChoicePrefixFinalizeDraft+other.ID.String()))

	if len(ord.finalized) != 0 {
		t.Fatal("expected foreign draft finalize to be rejected")
	}
}
