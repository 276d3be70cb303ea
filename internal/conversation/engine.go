package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paquetebot/paquetebot-backend/internal/sessions"
	"github.com/paquetebot/paquetebot-backend/pkg/db/models"
	"github.com/paquetebot/paquetebot-backend/pkg/locking"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/metrics"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Handler is the shape both state machines expose.
type Handler interface {
	Handle(ctx context.Context, user *models.User, event types.IntakeEvent) ([]types.Renderable, error)
}

// Engine owns one conversational turn: resolve the session, run the right
// state machine under the per-user lock, persist the mutated session, and
// hand the replies back to the channel adapter. State is the durability
// boundary; replies that fail to send later do not roll it back.
type Engine struct {
	users   sessions.Service
	intake  Handler
	admin   Handler
	locks   *locking.KeyedMutex
	logg    *logger.Logger
	metrics *metrics.BotMetrics
}

// NewEngine wires the conversation engine. The handlers are the intake and
// admin state machines.
func NewEngine(
	users sessions.Service,
	intakeMachine Handler,
	adminMachine Handler,
	logg *logger.Logger,
	botMetrics *metrics.BotMetrics,
) (*Engine, error) {
	if users == nil {
		return nil, fmt.Errorf("sessions service required")
	}
	if intakeMachine == nil {
		return nil, fmt.Errorf("intake machine required")
	}
	if adminMachine == nil {
		return nil, fmt.Errorf("admin machine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		users:   users,
		intake:  intakeMachine,
		admin:   adminMachine,
		locks:   locking.NewKeyedMutex(),
		logg:    logg,
		metrics: botMetrics,
	}, nil
}

// HandleEvent processes one inbound event end to end. It never returns an
// error for bad user input; the replies carry the re-prompt. A non-nil error
// means a dependency failed: the adapter should still deliver the apology
// replies returned alongside it, and may let the platform redeliver the turn.
func (e *Engine) HandleEvent(ctx context.Context, event types.IntakeEvent) ([]types.Renderable, error) {
	started := time.Now()
	channel := event.Identity.Channel.String()
	ctx = e.logg.WithChannel(ctx, channel)

	key := event.Identity.Key()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	user, err := e.users.Resolve(ctx, event.Identity)
	if err != nil {
		e.logg.Error(ctx, "resolve session failed", err)
		e.metrics.IncIntakeEvent(channel, "error")
		return apology(), err
	}
	ctx = e.logg.WithUserID(ctx, user.ID.String())

	out, err := e.route(user, event).Handle(ctx, user, event)
	if err != nil {
		e.logg.Error(ctx, "conversation turn failed", err)
		e.metrics.IncIntakeEvent(channel, "error")
		return apology(), err
	}

	if err := e.users.Save(ctx, user); err != nil {
		e.logg.Error(ctx, "persist session failed", err)
		e.metrics.IncIntakeEvent(channel, "error")
		return apology(), err
	}

	e.metrics.IncIntakeEvent(channel, "ok")
	e.metrics.ObserveIntakeDuration(channel, time.Since(started))
	return out, nil
}

// route picks the machine that owns this turn. Admins fall through to the
// customer intake flow unless the admin machine is engaged or the event
// explicitly targets it; customers never reach the admin machine.
func (e *Engine) route(user *models.User, event types.IntakeEvent) Handler {
	if !user.IsAdmin() {
		return e.intake
	}
	if user.AdminState.Engaged() {
		return e.admin
	}
	if event.Kind == types.EventKindStructuredChoice && types.IsAdminChoice(event.ChoiceID) {
		return e.admin
	}
	if event.Kind == types.EventKindFreeText && isAdminTextEntry(event.Text) {
		return e.admin
	}
	return e.intake
}

// isAdminTextEntry recognizes free-text entry points into the admin flow.
func isAdminTextEntry(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "/admin" || strings.HasPrefix(trimmed, "search ")
}

func apology() []types.Renderable {
	return []types.Renderable{types.Text("Something went wrong on our side, please try again in a moment.")}
}
