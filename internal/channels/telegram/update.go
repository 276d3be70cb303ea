package telegram

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

// Update mirrors the subset of the Bot API update payload the bot consumes.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// Inbound is one normalized Telegram turn.
type Inbound struct {
	Event types.IntakeEvent
	// DeliveryID keys webhook dedup; Telegram retries keep the update_id.
	DeliveryID string
	// CallbackQueryID is set for button taps and wants an answerCallbackQuery.
	CallbackQueryID string
}

// ParseUpdate normalizes one webhook body. Updates the bot does not consume
// (edits, channel posts, stickers) return a nil Inbound and no error.
func ParseUpdate(body []byte) (*Inbound, error) {
	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode telegram update")
	}

	deliveryID := strconv.FormatInt(update.UpdateID, 10)

	if cb := update.CallbackQuery; cb != nil && cb.Data != "" {
		return &Inbound{
			Event: types.IntakeEvent{
				Identity: types.Identity{Channel: enums.ChannelTelegram, TelegramID: cb.From.ID},
				Kind:     types.EventKindStructuredChoice,
				ChoiceID: cb.Data,
			},
			DeliveryID:      deliveryID,
			CallbackQueryID: cb.ID,
		}, nil
	}

	if msg := update.Message; msg != nil && msg.From != nil && strings.TrimSpace(msg.Text) != "" {
		return &Inbound{
			Event: types.IntakeEvent{
				Identity: types.Identity{Channel: enums.ChannelTelegram, TelegramID: msg.From.ID},
				Kind:     types.EventKindFreeText,
				Text:     msg.Text,
			},
			DeliveryID: deliveryID,
		}, nil
	}

	return nil, nil
}
