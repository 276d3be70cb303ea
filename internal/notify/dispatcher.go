package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/paquetebot/paquetebot-backend/internal/sessions"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/metrics"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Channel sends a renderable to one identity on one messaging platform.
type Channel interface {
	Send(ctx context.Context, identity types.Identity, msg types.Renderable) error
}

// Dispatcher routes outbound messages to whichever channel the target user
// owns. Delivery is fire-and-forget: failures are logged and counted, never
// returned to the state change that triggered them.
type Dispatcher struct {
	channels map[enums.Channel]Channel
	users    sessions.Repository
	logg     *logger.Logger
	metrics  *metrics.BotMetrics
}

// NewDispatcher builds a dispatcher over the registered channel adapters.
func NewDispatcher(
	channels map[enums.Channel]Channel,
	users sessions.Repository,
	logg *logger.Logger,
	botMetrics *metrics.BotMetrics,
) (*Dispatcher, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel adapter required")
	}
	if users == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		channels: channels,
		users:    users,
		logg:     logg,
		metrics:  botMetrics,
	}, nil
}

// Notify loads the user and delivers the message on their channel.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, msg types.Renderable) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		d.logg.Error(d.logg.WithUserID(ctx, userID.String()), "notify: load user failed", err)
		return
	}
	d.NotifyUser(ctx, user, msg)
}

// NotifyUser delivers the message to an already-loaded user.
func (d *Dispatcher) NotifyUser(ctx context.Context, user *models.User, msg types.Renderable) {
	_ = d.deliver(ctx, user, msg)
}

// NotifyAdmins fans the message out to every admin user. Per-admin failures
// are combined so one log line covers the whole fan-out.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, msg types.Renderable) {
	admins, err := d.users.FindAdmins(ctx)
	if err != nil {
		d.logg.Error(ctx, "notify: list admins failed", err)
		return
	}

	var errs error
	for i := range admins {
		errs = multierr.Append(errs, d.deliver(ctx, &admins[i], msg))
	}
	if errs != nil {
		d.logg.Error(ctx, "notify: admin fan-out incomplete", errs)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, user *models.User, msg types.Renderable) error {
	if user == nil {
		return nil
	}
	identity := identityOf(user)
	channel, ok := d.channels[identity.Channel]
	if !ok {
		err := fmt.Errorf("channel %s not registered", identity.Channel)
		d.logg.Error(d.logg.WithChannel(ctx, identity.Channel.String()), "notify: no adapter for channel", err)
		return err
	}

	ctx = d.logg.WithChannel(d.logg.WithUserID(ctx, user.ID.String()), identity.Channel.String())
	if err := channel.Send(ctx, identity, msg); err != nil {
		d.logg.Error(ctx, "notify: send failed", err)
		d.metrics.IncNotification(identity.Channel.String(), "failed")
		return err
	}
	d.metrics.IncNotification(identity.Channel.String(), "sent")
	return nil
}

func identityOf(user *models.User) types.Identity {
	if user.TelegramID != nil {
		return types.Identity{Channel: enums.ChannelTelegram, TelegramID: *user.TelegramID}
	}
	if user.WhatsAppID != nil {
		return types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: *user.WhatsAppID}
	}
	return types.Identity{}
}
