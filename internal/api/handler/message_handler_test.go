package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
)

func newSendRequest(t *testing.T, body map[string]any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/messages/send-message/", bytes.NewReader(raw))
}

func TestMessageHandler_SendMessage_ImmediateHappyPath(t *testing.T) {
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Name: "welcome", Subject: "hi", Body: "hello {{.Name}}"}) //nolint:errcheck
	broker := queue.NewMemoryBroker()
	h := NewMessageHandler(templates, broker, zap.NewNop())

	req := newSendRequest(t, map[string]any{
		"template_id":  "tmpl1",
		"subscribers":  []string{"user1", "user2"},
		"channel_type": string(domain.ChannelEmail),
		"event_type":   string(domain.EventUserRegistration),
		"context":      map[string]any{"name": "Ada"},
	})
	rec := httptest.NewRecorder()

	h.SendMessage(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["queue"] != string(priority.QueueHigh) {
		t.Fatalf("expected queue %q, got %v", priority.QueueHigh, resp["queue"])
	}
	if resp["priority"].(float64) != 5 {
		t.Fatalf("expected priority 5, got %v", resp["priority"])
	}

	d, ok := broker.Dequeue(req.Context(), priority.QueueHigh)
	if !ok {
		t.Fatal("expected exactly one message on notifications.high")
	}
	var unit domain.WorkUnit
	if err := json.Unmarshal(d.Body, &unit); err != nil {
		t.Fatalf("unmarshal published work unit: %v", err)
	}
	if unit.TemplateID != "tmpl1" || len(unit.Subscribers) != 2 {
		t.Fatalf("unexpected work unit: %+v", unit)
	}

	drainCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := broker.Dequeue(drainCtx, priority.QueueHigh); ok {
		t.Fatal("expected no second message on notifications.high")
	}
}

func TestMessageHandler_SendMessage_InvalidEventType(t *testing.T) {
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1"}) //nolint:errcheck
	broker := queue.NewMemoryBroker()
	h := NewMessageHandler(templates, broker, zap.NewNop())

	req := newSendRequest(t, map[string]any{
		"template_id":  "tmpl1",
		"subscribers":  []string{"user1"},
		"channel_type": string(domain.ChannelEmail),
		"event_type":   "invalid_event_type",
	})
	rec := httptest.NewRecorder()

	h.SendMessage(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMessageHandler_SendMessage_TemplateNotFound(t *testing.T) {
	templates := repository.NewMockTemplateStore()
	broker := queue.NewMemoryBroker()
	h := NewMessageHandler(templates, broker, zap.NewNop())

	req := newSendRequest(t, map[string]any{
		"template_id":  "does-not-exist",
		"subscribers":  []string{"user1"},
		"channel_type": string(domain.ChannelEmail),
		"event_type":   string(domain.EventUserRegistration),
	})
	rec := httptest.NewRecorder()

	h.SendMessage(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["error"] != domain.ErrNotFound.Error() {
		t.Fatalf("expected error %q, got %q", domain.ErrNotFound.Error(), resp["error"])
	}
}
