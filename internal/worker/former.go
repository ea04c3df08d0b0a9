package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

// FormerHooks are the metric callbacks a Former invokes per subscriber
// outcome. Injected by the caller so this package stays import-free of
// any metrics instrument types.
type FormerHooks struct {
	OnSent         func(domain.ChannelType, time.Duration)
	OnFailed       func(domain.ChannelType)
	OnDropped      func(domain.ChannelType)
	OnDedupSkipped func(domain.ChannelType)
}

func (h *FormerHooks) fillDefaults() {
	if h.OnSent == nil {
		h.OnSent = func(domain.ChannelType, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.ChannelType) {}
	}
	if h.OnDropped == nil {
		h.OnDropped = func(domain.ChannelType) {}
	}
	if h.OnDedupSkipped == nil {
		h.OnDedupSkipped = func(domain.ChannelType) {}
	}
}

// Former is a single-queue consumer worker. One Former instance is bound
// to exactly one broker queue; several may run concurrently against the
// same queue as competing consumers.
type Former struct {
	queueName      priority.QueueName
	broker         queue.Broker
	templates      repository.TemplateStore
	scheduled      repository.ScheduledStore
	periodic       repository.PeriodicStore
	auth           subscriber.AuthClient
	dedup          dedup.Store
	render         *renderer.Renderer
	senders        *sender.Registry
	limiters       *ratelimiter.ChannelLimiters
	redisTTL       time.Duration
	defaultSubject string
	logger         *zap.Logger
	hooks          FormerHooks
}

func NewFormer(
	queueName priority.QueueName,
	broker queue.Broker,
	templates repository.TemplateStore,
	scheduled repository.ScheduledStore,
	periodic repository.PeriodicStore,
	auth subscriber.AuthClient,
	dedupStore dedup.Store,
	render *renderer.Renderer,
	senders *sender.Registry,
	limiters *ratelimiter.ChannelLimiters,
	redisTTL time.Duration,
	defaultSubject string,
	logger *zap.Logger,
	hooks FormerHooks,
) *Former {
	hooks.fillDefaults()
	return &Former{
		queueName:      queueName,
		broker:         broker,
		templates:      templates,
		scheduled:      scheduled,
		periodic:       periodic,
		auth:           auth,
		dedup:          dedupStore,
		render:         render,
		senders:        senders,
		limiters:       limiters,
		redisTTL:       redisTTL,
		defaultSubject: defaultSubject,
		logger:         logger,
		hooks:          hooks,
	}
}

// Run consumes the bound queue until ctx is cancelled or the broker
// connection drops.
func (f *Former) Run(ctx context.Context) error {
	deliveries, err := f.broker.Consume(ctx, f.queueName)
	if err != nil {
		return err
	}

	f.logger.Info("former started", zap.String("queue", string(f.queueName)))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("former stopping", zap.String("queue", string(f.queueName)))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			f.handle(ctx, d)
		}
	}
}

func (f *Former) handle(ctx context.Context, d queue.Delivery) {
	defer d.Ack()

	var unit domain.WorkUnit
	if err := json.Unmarshal(d.Body, &unit); err != nil {
		f.logger.Error("discarding undecodable work unit", zap.Error(err), zap.String("queue", string(f.queueName)))
		return
	}

	log := f.logger.With(
		zap.String("queue", string(f.queueName)),
		zap.String("request_id", d.RequestID),
		zap.String("template_id", unit.TemplateID),
	)

	if !f.checkMessageStatus(ctx, unit) {
		log.Info("preflight failed, discarding work unit")
		return
	}

	tmpl, err := f.templates.Get(ctx, unit.TemplateID)
	if err != nil {
		log.Warn("template not found, discarding work unit", zap.Error(err))
		return
	}

	for _, subscriberID := range unit.Subscribers {
		if f.dispatchOne(ctx, log, unit, d, tmpl, subscriberID) == errStopUnit {
			return
		}
	}
}

var errStopUnit = errors.New("stop processing this work unit")

// dispatchOne delivers to a single subscriber. Returns errStopUnit when a
// SenderSendMessageError pushed the raw unit to the DLQ and the remaining
// subscribers must not be processed (avoids double-enqueueing the unit).
func (f *Former) dispatchOne(ctx context.Context, log *zap.Logger, unit domain.WorkUnit, d queue.Delivery, tmpl domain.Template, subscriberID string) error {
	if unit.NotificationID != nil {
		sent, err := f.dedup.WasSent(ctx, subscriberID, *unit.NotificationID)
		if err != nil {
			log.Error("dedup check failed", zap.String("subscriber", subscriberID), zap.Error(err))
			return nil
		}
		if sent {
			f.hooks.OnDedupSkipped(unit.ChannelType)
			return nil
		}
	}

	user, err := f.auth.GetUserData(ctx, subscriberID)
	if err != nil {
		log.Warn("subscriber data fetch failed, skipping subscriber", zap.String("subscriber", subscriberID), zap.Error(err))
		return nil
	}

	renderCtx := mergeRenderContext(user, unit.Context)

	body, err := f.render.Render(ctx, tmpl.Body, renderCtx)
	if err != nil {
		log.Error("render failed, skipping subscriber", zap.String("subscriber", subscriberID), zap.Error(err))
		return nil
	}

	subject := f.defaultSubject
	if s, ok := unit.Context["subject"].(string); ok && s != "" {
		subject = s
	}

	snd, err := f.senders.Get(unit.ChannelType)
	if err != nil {
		log.Warn("no sender for channel, dropping subscriber", zap.String("channel", string(unit.ChannelType)), zap.String("subscriber", subscriberID))
		f.hooks.OnDropped(unit.ChannelType)
		return nil
	}

	if err := f.limiters.Wait(ctx, unit.ChannelType); err != nil {
		return nil
	}

	start := time.Now()
	sendErr := snd.Send(ctx, user.Email, subject, body)
	elapsed := time.Since(start)

	var sendMsgErr *sender.SenderSendMessageError
	if errors.As(sendErr, &sendMsgErr) {
		log.Error("send exhausted retries, pushing to dlq", zap.String("subscriber", subscriberID), zap.Error(sendErr))
		f.hooks.OnFailed(unit.ChannelType)
		if pushErr := f.dedup.DLQPush(ctx, string(f.queueName), d.Body); pushErr != nil {
			log.Error("dlq push failed", zap.Error(pushErr))
		}
		return errStopUnit
	}
	if sendErr != nil {
		log.Error("send failed", zap.String("subscriber", subscriberID), zap.Error(sendErr))
		return nil
	}

	f.hooks.OnSent(unit.ChannelType, elapsed)
	if unit.NotificationID != nil {
		if err := f.dedup.MarkSent(ctx, subscriberID, *unit.NotificationID, f.redisTTL); err != nil {
			log.Error("mark sent failed", zap.String("subscriber", subscriberID), zap.Error(err))
		}
	}
	return nil
}

// checkMessageStatus reports whether unit is still live and worth
// processing: immediate units always are; scheduled units must still have a
// backing record, and periodic units one that is still active.
func (f *Former) checkMessageStatus(ctx context.Context, unit domain.WorkUnit) bool {
	switch unit.MessageType {
	case domain.MessageImmediate:
		return true
	case domain.MessageScheduled:
		if unit.NotificationID == nil {
			return false
		}
		_, err := f.scheduled.Get(ctx, *unit.NotificationID)
		return err == nil
	case domain.MessagePeriodic:
		if unit.NotificationID == nil {
			return false
		}
		active, err := f.periodic.IsActive(ctx, *unit.NotificationID)
		return err == nil && active
	default:
		return false
	}
}

// mergeRenderContext builds the template context as UserData's fields
// overlaid by the unit's own context, so an explicit context field wins
// on collision.
func mergeRenderContext(user subscriber.UserData, unitContext map[string]any) map[string]any {
	out := map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}
	if user.BirthDate != nil {
		out["birth_date"] = *user.BirthDate
	}
	if user.Phone != nil {
		out["phone"] = *user.Phone
	}
	if user.Avatar != nil {
		out["avatar"] = *user.Avatar
	}
	if user.URL != nil {
		out["url"] = *user.URL
	}
	for k, v := range unitContext {
		out[k] = v
	}
	return out
}
