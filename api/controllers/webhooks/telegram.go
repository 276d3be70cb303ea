package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/paquetebot/paquetebot-backend/api/responses"
	"github.com/paquetebot/paquetebot-backend/internal/channels/telegram"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ConversationEngine is the turn processor behind both webhook endpoints.
type ConversationEngine interface {
	HandleEvent(ctx context.Context, event types.IntakeEvent) ([]types.Renderable, error)
}

// DeliveryGuard drops webhook redeliveries and releases claims for turns
// that failed, so the platform retry is reprocessed.
type DeliveryGuard interface {
	ShouldProcess(ctx context.Context, channel enums.Channel, deliveryID string) bool
	Release(ctx context.Context, channel enums.Channel, deliveryID string)
}

type telegramClient interface {
	Send(ctx context.Context, identity types.Identity, msg types.Renderable) error
	AnswerCallback(ctx context.Context, callbackQueryID string) error
	VerifyWebhookSecret(header string) bool
}

// TelegramWebhook handles Bot API update deliveries. It always answers 200
// once the update is accepted; Telegram otherwise redelivers the same
// update indefinitely.
func TelegramWebhook(engine ConversationEngine, client telegramClient, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if engine == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "telegram webhook not wired"))
			return
		}

		if !client.VerifyWebhookSecret(r.Header.Get(telegramSecretHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		inbound, err := telegram.ParseUpdate(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if inbound == nil {
			responses.WriteSuccess(w, nil)
			return
		}

		if !guard.ShouldProcess(ctx, enums.ChannelTelegram, inbound.DeliveryID) {
			responses.WriteSuccess(w, nil)
			return
		}

		if inbound.CallbackQueryID != "" {
			if err := client.AnswerCallback(ctx, inbound.CallbackQueryID); err != nil {
				logg.Warn(ctx, "answer callback query failed")
			}
		}

		replies, handleErr := engine.HandleEvent(ctx, inbound.Event)
		if handleErr != nil {
			guard.Release(ctx, enums.ChannelTelegram, inbound.DeliveryID)
		}
		for _, reply := range replies {
			if err := client.Send(ctx, inbound.Event.Identity, reply); err != nil {
				logg.Error(ctx, "send telegram reply failed", err)
			}
		}

		responses.WriteSuccess(w, nil)
	}
}
