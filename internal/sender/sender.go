// Package sender maps channel types to delivery implementations. Grounded
// on the workers/senders package: a SenderServiceBase contract, an email
// sender with exponential-backoff retry over SMTP, and nil slots for
// channels with no implementation.
package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/notifyhub/pipeline/internal/domain"
)

// SenderSendMessageError wraps the target and cause of a delivery that
// exhausted its retries. The Former treats this as a DLQ-push trigger —
// it must never reach the caller of Ingress.
type SenderSendMessageError struct {
	Target string
	Cause  error
}

func (e *SenderSendMessageError) Error() string {
	return fmt.Sprintf("failed to send message to %s after multiple attempts: %v", e.Target, e.Cause)
}

func (e *SenderSendMessageError) Unwrap() error {
	return e.Cause
}

// ErrNoSender is returned by the registry for a channel with a nil slot
// (sms, push): logged and dropped by the Former, never retried.
var ErrNoSender = errors.New("no sender registered for channel")

// Sender delivers one rendered message to one target.
type Sender interface {
	Send(ctx context.Context, target, subject, body string) error
}

// Registry maps a channel type to its Sender. A nil entry is a
// deliberately unimplemented channel (sms, push): Get returns ErrNoSender
// rather than panicking on a nil interface call.
type Registry struct {
	senders map[domain.ChannelType]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.ChannelType]Sender)}
}

// Register installs sender for channel. Passing a nil Sender records the
// channel as a deliberately empty slot, matching SENDER_SERVICES' None
// entries for sms/push.
func (r *Registry) Register(channel domain.ChannelType, sender Sender) {
	r.senders[channel] = sender
}

func (r *Registry) Get(channel domain.ChannelType) (Sender, error) {
	s, ok := r.senders[channel]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSender, channel)
	}
	return s, nil
}
