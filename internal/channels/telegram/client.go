package telegram

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paquetebot/paquetebot-backend/pkg/config"
	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

const responseBodyReadLimit int64 = 1024

// Client wraps the Telegram Bot API surface the bot needs: sending messages
// with inline keyboards and acknowledging callback queries.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	webhookSecret string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Bot API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Telegram client from config.
func NewClient(cfg config.TelegramConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.APIBaseURL, "/"),
		token:         cfg.BotToken,
		webhookSecret: cfg.WebhookSecret,
	}
	if client.baseURL == "" {
		client.baseURL = "https://api.telegram.org"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type sendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup *struct {
		InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

// Send delivers one Renderable as a Telegram message. Choices become an
// inline keyboard, one button per row.
func (c *Client) Send(ctx context.Context, identity types.Identity, msg types.Renderable) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client not configured")
	}
	if identity.TelegramID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "telegram identity required")
	}

	req := sendMessageRequest{ChatID: identity.TelegramID, Text: msg.Body}
	if len(msg.Choices) > 0 {
		rows := make([][]inlineKeyboardButton, 0, len(msg.Choices))
		for _, choice := range msg.Choices {
			rows = append(rows, []inlineKeyboardButton{{Text: choice.Label, CallbackData: choice.ID}})
		}
		req.ReplyMarkup = &struct {
			InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
		}{InlineKeyboard: rows}
	}

	return c.call(ctx, "sendMessage", req)
}

// AnswerCallback acknowledges a callback query so the client stops showing
// the loading spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackQueryID string) error {
	if callbackQueryID == "" {
		return nil
	}
	return c.call(ctx, "answerCallbackQuery", map[string]string{"callback_query_id": callbackQueryID})
}

// VerifyWebhookSecret checks the X-Telegram-Bot-Api-Secret-Token header.
// An empty configured secret disables the check.
func (c *Client) VerifyWebhookSecret(header string) bool {
	if c.webhookSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(c.webhookSecret)) == 1
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal telegram request")
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build telegram request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute telegram request")
	}
	defer func() { _ = resp.Body.Close() }()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "decode telegram response")
	}
	if !apiResp.OK {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, apiResp.Description), "telegram api rejected "+method)
	}
	return nil
}
