package whatsapp

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

const (
	responseBodyReadLimit int64 = 1024

	// Graph API limits for interactive messages.
	maxReplyButtons  = 3
	maxListRows      = 10
	buttonTitleLimit = 20
	listTitleLimit   = 24
)

// Client wraps the WhatsApp Cloud API messages endpoint.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
	verifyToken   string
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

// WithBaseURL overrides the Graph API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the WhatsApp client from config.
func NewClient(cfg config.WhatsAppConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("whatsapp access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.APIBaseURL, "/"),
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		verifyToken:   cfg.VerifyToken,
	}
	if client.baseURL == "" {
		client.baseURL = "https://graph.facebook.com/v19.0"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Send delivers one Renderable through the Cloud API. Up to three choices
// render as reply buttons, more become an interactive list, none is plain
// text. The platform truncation limits on titles are applied here so the
// core can use full labels.
func (c *Client) Send(ctx context.Context, identity types.Identity, msg types.Renderable) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "whatsapp client not configured")
	}
	if identity.WhatsAppID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "whatsapp identity required")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                identity.WhatsAppID,
	}

	switch {
	case len(msg.Choices) == 0:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": msg.Body}

	case len(msg.Choices) <= maxReplyButtons:
		buttons := make([]map[string]any, 0, len(msg.Choices))
		for _, choice := range msg.Choices {
			buttons = append(buttons, map[string]any{
				"type": "reply",
				"reply": map[string]any{
					"id":    choice.ID,
					"title": truncate(choice.Label, buttonTitleLimit),
				},
			})
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": msg.Body},
			"action": map[string]any{"buttons": buttons},
		}

	default:
		// Lists cap at ten rows, so longer menus are split into several
		// list messages rather than dropping choices.
		body := msg.Body
		for start := 0; start < len(msg.Choices); start += maxListRows {
			end := start + maxListRows
			if end > len(msg.Choices) {
				end = len(msg.Choices)
			}
			if err := c.post(ctx, listPayload(identity.WhatsAppID, body, msg.Choices[start:end])); err != nil {
				return err
			}
			body = "More options:"
		}
		return nil
	}

	return c.post(ctx, payload)
}

func listPayload(to, body string, choices []types.RenderChoice) map[string]any {
	rows := make([]map[string]any, 0, len(choices))
	for _, choice := range choices {
		rows = append(rows, map[string]any{
			"id":    choice.ID,
			"title": truncate(choice.Label, listTitleLimit),
		})
	}
	return map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "list",
			"body": map[string]any{"text": body},
			"action": map[string]any{
				"button":   "Choose",
				"sections": []map[string]any{{"rows": rows}},
			},
		},
	}
}

// VerifyHandshake answers the Cloud API webhook subscription challenge.
func (c *Client) VerifyHandshake(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.verifyToken)) != 1 {
		return "", false
	}
	return challenge, true
}

func (c *Client) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal whatsapp request")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build whatsapp request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute whatsapp request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), "whatsapp send failed")
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
