package whatsapp

import (
	"encoding/json"
	"strings"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// webhookPayload mirrors the Cloud API webhook envelope. One delivery can
// batch several messages across several entries.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Type        string `json:"type"`
	Text        *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// Inbound is one normalized WhatsApp turn.
type Inbound struct {
	Event types.IntakeEvent
	// DeliveryID is the wamid, stable across Cloud API redeliveries.
	DeliveryID string
}

// ParseWebhook normalizes one webhook body into the turns it carries.
// Status-only deliveries (sent/read receipts) yield an empty slice.
func ParseWebhook(body []byte) ([]Inbound, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode whatsapp webhook")
	}

	var out []Inbound
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if inbound, ok := normalize(msg); ok {
					out = append(out, inbound)
				}
			}
		}
	}
	return out, nil
}

func normalize(msg inboundMessage) (Inbound, bool) {
	if msg.From == "" {
		return Inbound{}, false
	}
	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: msg.From}

	switch msg.Type {
	case "text":
		if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
			return Inbound{}, false
		}
		return Inbound{
			Event: types.IntakeEvent{
				Identity: identity,
				Kind:     types.EventKindFreeText,
				Text:     msg.Text.Body,
			},
			DeliveryID: msg.ID,
		}, true

	case "interactive":
		if msg.Interactive == nil {
			return Inbound{}, false
		}
		var choiceID string
		if msg.Interactive.ButtonReply != nil {
			choiceID = msg.Interactive.ButtonReply.ID
		} else if msg.Interactive.ListReply != nil {
			choiceID = msg.Interactive.ListReply.ID
		}
		if choiceID == "" {
			return Inbound{}, false
		}
		return Inbound{
			Event: types.IntakeEvent{
				Identity: identity,
				Kind:     types.EventKindStructuredChoice,
				ChoiceID: choiceID,
			},
			DeliveryID: msg.ID,
		}, true
	}

	return Inbound{}, false
}
