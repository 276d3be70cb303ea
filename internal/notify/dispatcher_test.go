package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paquetebot/paquetebot-backend/internal/sessions"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

type fakeChannel struct {
	err  error
	sent []types.Identity
	msgs []types.Renderable
}

func (f *fakeChannel) Send(ctx context.Context, identity types.Identity, msg types.Renderable) error {
	f.sent = append(f.sent, identity)
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeUsers struct {
	byID   map[uuid.UUID]*models.User
	admins []models.User
}

func (f *fakeUsers) WithTx(tx *gorm.DB) sessions.Repository { return f }

func (f *fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindByWhatsAppID(ctx context.Context, whatsappID string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindAdmins(ctx context.Context) ([]models.User, error) {
	return f.admins, nil
}

func (f *fakeUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return user, nil
}

func (f *fakeUsers) Save(ctx context.Context, user *models.User) error { return nil }

func telegramUser(id int64) *models.User {
	return &models.User{ID: uuid.New(), TelegramID: &id}
}

func whatsappUser(waID string) *models.User {
	return &models.User{ID: uuid.New(), WhatsAppID: &waID}
}

func newTestDispatcher(t *testing.T, users sessions.Repository, tg, wa Channel) *Dispatcher {
	t.Helper()
	channels := map[enums.Channel]Channel{}
	if tg != nil {
		channels[enums.ChannelTelegram] = tg
	}
	if wa != nil {
		channels[enums.ChannelWhatsApp] = wa
	}
	d, err := NewDispatcher(channels, users, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestNotifyRoutesByChannelIdentity(t *testing.T) {
	tg := &fakeChannel{}
	wa := &fakeChannel{}

	tgUser := telegramUser(42)
	waUser := whatsappUser("34600000000")
	users := &fakeUsers{byID: map[uuid.UUID]*models.User{
		tgUser.ID: tgUser,
		waUser.ID: waUser,
	}}
	d := newTestDispatcher(t, users, tg, wa)
	ctx := context.Background()

	d.Notify(ctx, tgUser.ID, types.Text("hello"))
	d.Notify(ctx, waUser.ID, types.Text("hola"))

	if len(tg.sent) != 1 || tg.sent[0].TelegramID != 42 {
		t.Fatalf("expected one telegram send to 42, got %+v", tg.sent)
	}
	if len(wa.sent) != 1 || wa.sent[0].WhatsAppID != "34600000000" {
		t.Fatalf("expected one whatsapp send, got %+v", wa.sent)
	}
}

func TestNotifySwallowsSendFailure(t *testing.T) {
	tg := &fakeChannel{err: errors.New("telegram 502")}
	user := telegramUser(42)
	users := &fakeUsers{byID: map[uuid.UUID]*models.User{user.ID: user}}
	d := newTestDispatcher(t, users, tg, nil)

	// must not panic or propagate
	d.Notify(context.Background(), user.ID, types.Text("hello"))

	if len(tg.sent) != 1 {
		t.Fatalf("expected the send to be attempted, got %d", len(tg.sent))
	}
}

func TestNotifyUnknownUserIsLoggedOnly(t *testing.T) {
	d := newTestDispatcher(t, &fakeUsers{}, &fakeChannel{}, nil)
	d.Notify(context.Background(), uuid.New(), types.Text("hello"))
}

func TestNotifyAdminsFansOut(t *testing.T) {
	tg := &fakeChannel{}
	wa := &fakeChannel{}
	users := &fakeUsers{admins: []models.User{*telegramUser(1), *whatsappUser("34600000001")}}
	d := newTestDispatcher(t, users, tg, wa)

	d.NotifyAdmins(context.Background(), types.Text("new order"))

	if len(tg.sent) != 1 || len(wa.sent) != 1 {
		t.Fatalf("expected fan-out to both admins, got tg=%d wa=%d", len(tg.sent), len(wa.sent))
	}
}

func TestOrderEventsTrackingSendsExactlyOneNotification(t *testing.T) {
	tg := &fakeChannel{}
	owner := telegramUser(42)
	users := &fakeUsers{byID: map[uuid.UUID]*models.User{owner.ID: owner}}
	d := newTestDispatcher(t, users, tg, nil)

	events, err := NewOrderEvents(d)
	if err != nil {
		t.Fatalf("NewOrderEvents: %v", err)
	}
	events.spawn = func(fn func()) { fn() }

	number := "ABC123"
	url := "https://example.com/t/ABC123"
	events.TrackingAssigned(context.Background(), &models.Order{
		ID:             uuid.New(),
		UserID:         owner.ID,
		Status:         enums.OrderStatusShipped,
		TrackingNumber: &number,
		TrackingURL:    &url,
	})

	if len(tg.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(tg.sent))
	}
	body := tg.msgs[0].Body
	if !strings.Contains(body, "ABC123") || !strings.Contains(body, url) {
		t.Fatalf("expected tracking details in message, got %q", body)
	}
}

func TestOrderEventsFinalizedNotifiesClientAndAdmins(t *testing.T) {
	tg := &fakeChannel{}
	owner := telegramUser(42)
	users := &fakeUsers{
		byID:   map[uuid.UUID]*models.User{owner.ID: owner},
		admins: []models.User{*telegramUser(1)},
	}
	d := newTestDispatcher(t, users, tg, nil)

	events, err := NewOrderEvents(d)
	if err != nil {
		t.Fatalf("NewOrderEvents: %v", err)
	}
	events.spawn = func(fn func()) { fn() }

	events.OrderFinalized(context.Background(), &models.Order{
		ID:          uuid.New(),
		UserID:      owner.ID,
		ClientPhone: "+34600000000",
		Status:      enums.OrderStatusProcessing,
	})

	if len(tg.sent) != 2 {
		t.Fatalf("expected client + admin notifications, got %d", len(tg.sent))
	}
}
