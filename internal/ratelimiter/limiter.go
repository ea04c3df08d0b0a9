package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/notifyhub/pipeline/internal/domain"
)

// ChannelLimiters holds one token bucket limiter per channel type, gating
// the Former's dispatch step rather than the broker publish. Burst is set
// equal to the rate so no extra burst capacity is allowed beyond the
// configured per-second maximum.
type ChannelLimiters struct {
	limiters map[domain.ChannelType]*rate.Limiter
}

// New creates a ChannelLimiters with ratePerSec tokens per second per channel.
func New(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec // burst == rate: prevents any "saved up" burst above the limit

	return &ChannelLimiters{
		limiters: map[domain.ChannelType]*rate.Limiter{
			domain.ChannelSMS:   rate.NewLimiter(r, burst),
			domain.ChannelEmail: rate.NewLimiter(r, burst),
			domain.ChannelPush:  rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Called by the Former immediately before dispatching to a Sender.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.ChannelType) error {
	return cl.limiters[ch].Wait(ctx)
}
