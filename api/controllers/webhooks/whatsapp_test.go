package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paquetebot/paquetebot-backend/pkg/types"
)

type fakeWhatsAppClient struct {
	verifyOK bool
	sent     []types.Renderable
}

func (f *fakeWhatsAppClient) Send(ctx context.Context, identity types.Identity, msg types.Renderable) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeWhatsAppClient) VerifyHandshake(mode, token, challenge string) (string, bool) {
	if !f.verifyOK {
		return "", false
	}
	return challenge, true
}

func TestWhatsAppVerifyEchoesChallenge(t *testing.T) {
	handler := WhatsAppVerify(&fakeWhatsAppClient{verifyOK: true}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=x&hub.challenge=4242", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "4242" {
		t.Fatalf("expected raw challenge, got %q", rec.Body.String())
	}
}

func TestWhatsAppVerifyRejectsBadToken(t *testing.T) {
	handler := WhatsAppVerify(&fakeWhatsAppClient{verifyOK: false}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=bad&hub.challenge=4242", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWhatsAppWebhookProcessesBatchedMessages(t *testing.T) {
	engine := &fakeEngine{replies: []types.Renderable{types.Text("ok")}}
	client := &fakeWhatsAppClient{}
	guard := &fakeGuard{process: true}
	handler := WhatsAppWebhook(engine, client, guard, testLogger())

	body := `{
		"entry": [{"changes": [{"value": {"messages": [
			{"id": "wamid.1", "from": "34600000000", "type": "text", "text": {"body": "hello"}},
			{"id": "wamid.2", "from": "34600000001", "type": "text", "text": {"body": "hi"}}
		]}}]}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(engine.events) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(engine.events))
	}
	if len(client.sent) != 2 {
		t.Fatalf("expected 2 replies sent, got %d", len(client.sent))
	}
	if len(guard.seen) != 2 || guard.seen[0] != "wamid.1" {
		t.Fatalf("unexpected dedup checks: %v", guard.seen)
	}
}

func TestWhatsAppWebhookSkipsDuplicates(t *testing.T) {
	engine := &fakeEngine{}
	handler := WhatsAppWebhook(engine, &fakeWhatsAppClient{}, &fakeGuard{process: false}, testLogger())

	body := `{"entry": [{"changes": [{"value": {"messages": [
		{"id": "wamid.1", "from": "34600000000", "type": "text", "text": {"body": "hello"}}
	]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(engine.events) != 0 {
		t.Fatal("expected duplicate skipped")
	}
}
