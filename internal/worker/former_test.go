package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/dedup"
	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/ratelimiter"
	"github.com/notifyhub/pipeline/internal/renderer"
	"github.com/notifyhub/pipeline/internal/repository"
	"github.com/notifyhub/pipeline/internal/sender"
	"github.com/notifyhub/pipeline/internal/subscriber"
)

type stubAuthClient struct {
	users map[string]subscriber.UserData
}

func (s *stubAuthClient) GetUsers(context.Context, int, int, int, int) ([]string, error) {
	return nil, nil
}

func (s *stubAuthClient) GetUserData(_ context.Context, userID string) (subscriber.UserData, error) {
	u, ok := s.users[userID]
	if !ok {
		return subscriber.UserData{}, errors.New("unknown user")
	}
	return u, nil
}

type stubSender struct {
	sendErr error
	sent    []string
}

func (s *stubSender) Send(_ context.Context, target, _, _ string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, target)
	return nil
}

func newTestFormer(t *testing.T, broker queue.Broker, templates repository.TemplateStore, scheduled repository.ScheduledStore, periodic repository.PeriodicStore, auth subscriber.AuthClient, registry *sender.Registry) (*Former, dedup.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := dedup.NewRedisStore(client)

	f := NewFormer(
		priority.QueueHigh,
		broker,
		templates,
		scheduled,
		periodic,
		auth,
		store,
		renderer.New(nil),
		registry,
		ratelimiter.New(1000),
		time.Minute,
		"Default Subject",
		zap.NewNop(),
		FormerHooks{},
	)
	return f, store
}

func publishUnit(t *testing.T, broker *queue.MemoryBroker, unit domain.WorkUnit) {
	t.Helper()
	body, err := json.Marshal(unit)
	if err != nil {
		t.Fatalf("marshal unit: %v", err)
	}
	if err := broker.Publish(context.Background(), priority.QueueHigh, body, 5, "req-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestFormer_ImmediateMessageDeliversAndAcks(t *testing.T) {
	broker := queue.NewMemoryBroker()
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Body: "Hello {{.first_name}}"})

	registry := sender.NewRegistry()
	snd := &stubSender{}
	registry.Register(domain.ChannelEmail, snd)

	auth := &stubAuthClient{users: map[string]subscriber.UserData{
		"user1": {ID: "user1", Email: "user1@example.com", FirstName: "Ada"},
	}}

	f, _ := newTestFormer(t, broker, templates, repository.NewMockScheduledStore(), repository.NewMockPeriodicStore(), auth, registry)

	unit := domain.WorkUnit{
		TemplateID:  "tmpl1",
		Subscribers: []string{"user1"},
		ChannelType: domain.ChannelEmail,
		MessageType: domain.MessageImmediate,
	}
	publishUnit(t, broker, unit)

	d, ok := broker.Dequeue(context.Background(), priority.QueueHigh)
	if !ok {
		t.Fatal("expected a delivery")
	}
	acked := false
	ack := d.Ack
	d.Ack = func() { acked = true; ack() }
	f.handle(context.Background(), d)

	if len(snd.sent) != 1 || snd.sent[0] != "user1@example.com" {
		t.Fatalf("expected one send to user1@example.com, got %v", snd.sent)
	}
	if !acked {
		t.Fatal("expected the delivery to be acked")
	}
}

func TestFormer_ScheduledMessageDroppedWhenRecordMissing(t *testing.T) {
	broker := queue.NewMemoryBroker()
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Body: "Hi"})

	registry := sender.NewRegistry()
	snd := &stubSender{}
	registry.Register(domain.ChannelEmail, snd)

	auth := &stubAuthClient{users: map[string]subscriber.UserData{
		"user1": {ID: "user1", Email: "user1@example.com"},
	}}

	f, _ := newTestFormer(t, broker, templates, repository.NewMockScheduledStore(), repository.NewMockPeriodicStore(), auth, registry)

	missingID := "does-not-exist"
	unit := domain.WorkUnit{
		TemplateID:     "tmpl1",
		Subscribers:    []string{"user1"},
		ChannelType:    domain.ChannelEmail,
		MessageType:    domain.MessageScheduled,
		NotificationID: &missingID,
	}
	publishUnit(t, broker, unit)
	d, _ := broker.Dequeue(context.Background(), priority.QueueHigh)
	f.handle(context.Background(), d)

	if len(snd.sent) != 0 {
		t.Fatalf("expected no sends for a dangling scheduled record, got %v", snd.sent)
	}
}

func TestFormer_DedupSkipsAlreadySentSubscriber(t *testing.T) {
	broker := queue.NewMemoryBroker()
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Body: "Hi"})

	registry := sender.NewRegistry()
	snd := &stubSender{}
	registry.Register(domain.ChannelEmail, snd)

	auth := &stubAuthClient{users: map[string]subscriber.UserData{
		"user1": {ID: "user1", Email: "user1@example.com"},
	}}

	scheduledStore := repository.NewMockScheduledStore()
	notificationID := "sched1"
	scheduledStore.Create(context.Background(), domain.ScheduledNotification{ID: notificationID})

	f, store := newTestFormer(t, broker, templates, scheduledStore, repository.NewMockPeriodicStore(), auth, registry)
	store.MarkSent(context.Background(), "user1", notificationID, time.Minute)

	unit := domain.WorkUnit{
		TemplateID:     "tmpl1",
		Subscribers:    []string{"user1"},
		ChannelType:    domain.ChannelEmail,
		MessageType:    domain.MessageScheduled,
		NotificationID: &notificationID,
	}
	publishUnit(t, broker, unit)
	d, _ := broker.Dequeue(context.Background(), priority.QueueHigh)
	f.handle(context.Background(), d)

	if len(snd.sent) != 0 {
		t.Fatalf("expected dedup to skip the already-sent subscriber, got %v", snd.sent)
	}
}

func TestFormer_SendFailureExhaustingRetriesPushesToDLQAndStopsUnit(t *testing.T) {
	broker := queue.NewMemoryBroker()
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Body: "Hi"})

	registry := sender.NewRegistry()
	snd := &stubSender{sendErr: &sender.SenderSendMessageError{Target: "user1@example.com", Cause: errors.New("smtp down")}}
	registry.Register(domain.ChannelEmail, snd)

	auth := &stubAuthClient{users: map[string]subscriber.UserData{
		"user1": {ID: "user1", Email: "user1@example.com"},
		"user2": {ID: "user2", Email: "user2@example.com"},
	}}

	f, store := newTestFormer(t, broker, templates, repository.NewMockScheduledStore(), repository.NewMockPeriodicStore(), auth, registry)

	unit := domain.WorkUnit{
		TemplateID:  "tmpl1",
		Subscribers: []string{"user1", "user2"},
		ChannelType: domain.ChannelEmail,
		MessageType: domain.MessageImmediate,
	}
	publishUnit(t, broker, unit)
	d, _ := broker.Dequeue(context.Background(), priority.QueueHigh)
	f.handle(context.Background(), d)

	if len(snd.sent) != 0 {
		t.Fatalf("expected no successful sends, got %v", snd.sent)
	}

	payload, ok, err := store.DLQPop(context.Background(), string(priority.QueueHigh))
	if err != nil || !ok {
		t.Fatalf("expected a dlq payload, ok=%v err=%v", ok, err)
	}
	if _, more, _ := store.DLQPop(context.Background(), string(priority.QueueHigh)); more {
		t.Fatal("expected a single dlq push: the unit must stop after the first failed send")
	}
	var gotUnit domain.WorkUnit
	if err := json.Unmarshal(payload, &gotUnit); err != nil {
		t.Fatalf("dlq payload did not decode: %v", err)
	}
	if len(gotUnit.Subscribers) != 2 {
		t.Fatalf("expected the raw original unit (both subscribers) in the dlq, got %v", gotUnit.Subscribers)
	}
}

func TestFormer_NilSenderSlotDropsWithoutDLQ(t *testing.T) {
	broker := queue.NewMemoryBroker()
	templates := repository.NewMockTemplateStore()
	templates.Create(context.Background(), domain.Template{ID: "tmpl1", Body: "Hi"})

	registry := sender.NewRegistry()
	registry.Register(domain.ChannelSMS, nil)

	auth := &stubAuthClient{users: map[string]subscriber.UserData{
		"user1": {ID: "user1", Email: "user1@example.com"},
	}}

	f, store := newTestFormer(t, broker, templates, repository.NewMockScheduledStore(), repository.NewMockPeriodicStore(), auth, registry)

	unit := domain.WorkUnit{
		TemplateID:  "tmpl1",
		Subscribers: []string{"user1"},
		ChannelType: domain.ChannelSMS,
		MessageType: domain.MessageImmediate,
	}
	publishUnit(t, broker, unit)
	d, _ := broker.Dequeue(context.Background(), priority.QueueHigh)
	f.handle(context.Background(), d)

	if _, ok, _ := store.DLQPop(context.Background(), string(priority.QueueHigh)); ok {
		t.Fatal("nil sender slots must never push to the dlq")
	}
}
