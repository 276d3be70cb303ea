package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/paquetebot/paquetebot-backend/api/responses"
	"github.com/paquetebot/paquetebot-backend/internal/channels/whatsapp"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

type whatsappClient interface {
	Send(ctx context.Context, identity types.Identity, msg types.Renderable) error
	VerifyHandshake(mode, token, challenge string) (string, bool)
}

// WhatsAppVerify answers the Cloud API webhook subscription handshake.
func WhatsAppVerify(client whatsappClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		challenge, ok := client.VerifyHandshake(
			query.Get("hub.mode"),
			query.Get("hub.verify_token"),
			query.Get("hub.challenge"),
		)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid verify token"))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge))
	}
}

// WhatsAppWebhook handles Cloud API message deliveries. One delivery can
// batch several turns; each is deduplicated and processed independently.
func WhatsAppWebhook(engine ConversationEngine, client whatsappClient, guard DeliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if engine == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "whatsapp webhook not wired"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		events, err := whatsapp.ParseWebhook(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		for _, inbound := range events {
			if !guard.ShouldProcess(ctx, enums.ChannelWhatsApp, inbound.DeliveryID) {
				continue
			}
			replies, handleErr := engine.HandleEvent(ctx, inbound.Event)
			if handleErr != nil {
				guard.Release(ctx, enums.ChannelWhatsApp, inbound.DeliveryID)
			}
			for _, reply := range replies {
				if err := client.Send(ctx, inbound.Event.Identity, reply); err != nil {
					logg.Error(ctx, "send whatsapp reply failed", err)
				}
			}
		}

		responses.WriteSuccess(w, nil)
	}
}
