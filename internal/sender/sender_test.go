package sender_test

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/sender"
)

type stubSender struct {
	sent bool
	err  error
}

func (s *stubSender) Send(_ context.Context, _, _, _ string) error {
	s.sent = true
	return s.err
}

func TestRegistry_GetRegisteredSender(t *testing.T) {
	reg := sender.NewRegistry()
	stub := &stubSender{}
	reg.Register(domain.ChannelEmail, stub)

	got, err := reg.Get(domain.ChannelEmail)
	if err != nil {
		t.Fatal(err)
	}
	if err := got.Send(context.Background(), "a@b.com", "subj", "body"); err != nil {
		t.Fatal(err)
	}
	if !stub.sent {
		t.Fatal("expected Send to be called")
	}
}

func TestRegistry_NilSlotReturnsErrNoSender(t *testing.T) {
	reg := sender.NewRegistry()
	reg.Register(domain.ChannelSMS, nil)
	reg.Register(domain.ChannelPush, nil)

	_, err := reg.Get(domain.ChannelSMS)
	if !errors.Is(err, sender.ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
	_, err = reg.Get(domain.ChannelPush)
	if !errors.Is(err, sender.ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
}

func TestRegistry_UnregisteredChannelReturnsErrNoSender(t *testing.T) {
	reg := sender.NewRegistry()
	if _, err := reg.Get(domain.ChannelType("unknown")); !errors.Is(err, sender.ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
}

func TestEmailSender_RetriesThenSucceeds(t *testing.T) {
	es := sender.NewEmailSender(sender.EmailConfig{Host: "smtp.test", Port: 25, From: "noreply@test"}, zap.NewNop())

	attempts := 0
	es.SetDialFunc(func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	if err := es.Send(context.Background(), "to@test", "subj", "body"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestEmailSender_ExhaustsRetriesAndSurfacesSendMessageError(t *testing.T) {
	es := sender.NewEmailSender(sender.EmailConfig{Host: "smtp.test", Port: 25, From: "noreply@test"}, zap.NewNop())

	attempts := 0
	es.SetDialFunc(func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		attempts++
		return errors.New("permanent failure")
	})

	err := es.Send(context.Background(), "to@test", "subj", "body")
	var sendErr *sender.SenderSendMessageError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SenderSendMessageError, got %v", err)
	}
	if attempts != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", attempts)
	}
}
