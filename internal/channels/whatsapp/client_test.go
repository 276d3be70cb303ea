package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paquetebot/paquetebot-backend/pkg/config"
	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

func testConfig(baseURL string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		AccessToken:   "token",
		PhoneNumberID: "555001",
		VerifyToken:   "verify-me",
		APIBaseURL:    baseURL,
	}
}

func captureServer(t *testing.T, gotBody *map[string]any, gotAuth *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, gotBody)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
}

func TestSendPlainText(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	server := captureServer(t, &gotBody, &gotAuth)
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: "34600000000"}
	if err := client.Send(context.Background(), identity, types.Text("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["type"] != "text" || gotBody["to"] != "34600000000" {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
}

func TestSendFewChoicesUsesReplyButtons(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	server := captureServer(t, &gotBody, &gotAuth)
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	msg := types.Text("Confirm?").
		WithChoice("confirm-order", "✅ Confirm").
		WithChoice("cancel-order", "❌ Cancel")
	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: "34600000000"}
	if err := client.Send(context.Background(), identity, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	interactive := gotBody["interactive"].(map[string]any)
	if interactive["type"] != "button" {
		t.Fatalf("expected button interactive, got %v", interactive["type"])
	}
	buttons := interactive["action"].(map[string]any)["buttons"].([]any)
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(buttons))
	}
	reply := buttons[0].(map[string]any)["reply"].(map[string]any)
	if reply["id"] != "confirm-order" {
		t.Fatalf("unexpected button id %v", reply["id"])
	}
}

func TestSendManyChoicesUsesList(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	server := captureServer(t, &gotBody, &gotAuth)
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	msg := types.Text("Pick a product")
	for i := 0; i < 5; i++ {
		msg = msg.WithChoice("product:"+strings.Repeat("a", i+1), "A product with a fairly long label")
	}
	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: "34600000000"}
	if err := client.Send(context.Background(), identity, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	interactive := gotBody["interactive"].(map[string]any)
	if interactive["type"] != "list" {
		t.Fatalf("expected list interactive, got %v", interactive["type"])
	}
	sections := interactive["action"].(map[string]any)["sections"].([]any)
	rows := sections[0].(map[string]any)["rows"].([]any)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	title := rows[0].(map[string]any)["title"].(string)
	if len([]rune(title)) > listTitleLimit {
		t.Fatalf("expected truncated title, got %q", title)
	}
}

func TestSendOverlongMenuSplitsIntoSeveralLists(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	msg := types.Text("Pick a product")
	for i := 0; i < 13; i++ {
		msg = msg.WithChoice("product:"+strings.Repeat("a", i+1), "Product")
	}
	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: "34600000000"}
	if err := client.Send(context.Background(), identity, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 list messages, got %d", len(bodies))
	}
	rowCount := func(body map[string]any) int {
		sections := body["interactive"].(map[string]any)["action"].(map[string]any)["sections"].([]any)
		return len(sections[0].(map[string]any)["rows"].([]any))
	}
	if rowCount(bodies[0]) != maxListRows || rowCount(bodies[1]) != 3 {
		t.Fatalf("unexpected row split: %d + %d", rowCount(bodies[0]), rowCount(bodies[1]))
	}
	secondText := bodies[1]["interactive"].(map[string]any)["body"].(map[string]any)["text"].(string)
	if secondText != "More options:" {
		t.Fatalf("unexpected continuation body %q", secondText)
	}
}

func TestSendSurfacesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad token"}}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	identity := types.Identity{Channel: enums.ChannelWhatsApp, WhatsAppID: "34600000000"}
	if err := client.Send(context.Background(), identity, types.Text("hi")); err == nil {
		t.Fatal("expected an error for a failed send")
	}
}

func TestVerifyHandshake(t *testing.T) {
	client, err := NewClient(testConfig("https://graph.facebook.com/v19.0"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	challenge, ok := client.VerifyHandshake("subscribe", "verify-me", "12345")
	if !ok || challenge != "12345" {
		t.Fatalf("expected handshake accepted, got %q %v", challenge, ok)
	}
	if _, ok := client.VerifyHandshake("subscribe", "wrong", "12345"); ok {
		t.Fatal("expected wrong token rejected")
	}
	if _, ok := client.VerifyHandshake("unsubscribe", "verify-me", "12345"); ok {
		t.Fatal("expected wrong mode rejected")
	}
}

func TestParseWebhookTextAndInteractive(t *testing.T) {
	body := []byte(`{
		"entry": [{"changes": [{"value": {"messages": [
			{"id": "wamid.1", "from": "34600000000", "type": "text", "text": {"body": "hello"}},
			{"id": "wamid.2", "from": "34600000000", "type": "interactive",
			 "interactive": {"type": "button_reply", "button_reply": {"id": "confirm-order", "title": "Confirm"}}},
			{"id": "wamid.3", "from": "34600000000", "type": "interactive",
			 "interactive": {"type": "list_reply", "list_reply": {"id": "category:1", "title": "Clothing"}}}
		]}}]}]
	}`)

	events, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Event.Kind != types.EventKindFreeText || events[0].Event.Text != "hello" {
		t.Fatalf("unexpected first event: %+v", events[0].Event)
	}
	if events[1].Event.ChoiceID != "confirm-order" || events[2].Event.ChoiceID != "category:1" {
		t.Fatalf("unexpected choice events: %+v %+v", events[1].Event, events[2].Event)
	}
	if events[0].DeliveryID != "wamid.1" {
		t.Fatalf("unexpected delivery id %q", events[0].DeliveryID)
	}
	if events[0].Event.Identity.WhatsAppID != "34600000000" {
		t.Fatalf("unexpected identity: %+v", events[0].Event.Identity)
	}
}

func TestParseWebhookIgnoresStatusDeliveries(t *testing.T) {
	events, err := ParseWebhook([]byte(`{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.4"}]}}]}]}`))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}

	if _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
