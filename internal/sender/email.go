package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// EmailConfig is the SMTP endpoint and identity EmailSender authenticates
// and sends with.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// EmailSender composes an RFC 5322 message and delivers it over SMTP with
// login auth, retrying transient failures with exponential backoff up to
// 5 attempts before surfacing SenderSendMessageError. Grounded on
// EmailSenderService (aiosmtplib + backoff.on_exception).
type EmailSender struct {
	cfg    EmailConfig
	logger *zap.Logger
	dial   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(cfg EmailConfig, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		logger: logger,
		dial:   smtp.SendMail,
	}
}

const maxSendAttempts = 5

// SetDialFunc overrides the SMTP dial function. Exposed for tests that
// need to simulate transient SMTP failures without a real server.
func (s *EmailSender) SetDialFunc(dial func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	s.dial = dial
}

func (s *EmailSender) Send(ctx context.Context, target, subject, body string) error {
	err := s.sendWithRetry(ctx, target, subject, body)
	if err != nil {
		s.logger.Error("failed to send email after multiple attempts",
			zap.String("target", target), zap.Error(err))
		return &SenderSendMessageError{Target: target, Cause: err}
	}
	return nil
}

func (s *EmailSender) sendWithRetry(ctx context.Context, target, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	msg := composeMessage(s.cfg.From, target, subject, body)

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxSendAttempts-1)

	return backoff.Retry(func() error {
		return s.dial(addr, auth, s.cfg.From, []string{target}, msg)
	}, backoff.WithContext(bo, ctx))
}

// composeMessage builds a minimal RFC 5322 message with an HTML body,
// matching EmailMessage().set_content(..., subtype="html").
func composeMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/html; charset=\"utf-8\"\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var _ Sender = (*EmailSender)(nil)
