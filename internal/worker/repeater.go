package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/dedup"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
)

// repeaterPriority is the AMQP priority every republished DLQ payload gets:
// the minimum, so fresh traffic is never starved by retries.
const repeaterPriority = 1

// RepeaterHooks are the gauge callbacks a Repeater invokes after each tick.
// Injected by the caller so this package stays import-free of any metrics
// instrument types.
type RepeaterHooks struct {
	SetQueueDepth func(priority.QueueName, int64)
	SetDLQDepth   func(priority.QueueName, int64)
}

func (h *RepeaterHooks) fillDefaults() {
	if h.SetQueueDepth == nil {
		h.SetQueueDepth = func(priority.QueueName, int64) {}
	}
	if h.SetDLQDepth == nil {
		h.SetDLQDepth = func(priority.QueueName, int64) {}
	}
}

// Repeater drains each queue's DLQ list on its own cron tick, republishing
// up to batchSize payloads per queue. SkipIfStillRunning keeps overlapping
// ticks from running concurrently.
type Repeater struct {
	cron      *cron.Cron
	schedule  string
	dedup     dedup.Store
	broker    queue.Broker
	batchSize int
	logger    *zap.Logger
	hooks     RepeaterHooks
}

func NewRepeater(schedule string, dedupStore dedup.Store, broker queue.Broker, batchSize int, logger *zap.Logger, hooks RepeaterHooks) *Repeater {
	hooks.fillDefaults()
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	return &Repeater{
		cron:      c,
		schedule:  schedule,
		dedup:     dedupStore,
		broker:    broker,
		batchSize: batchSize,
		logger:    logger,
		hooks:     hooks,
	}
}

func (r *Repeater) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.tick(ctx) }); err != nil {
		return err
	}

	r.logger.Info("repeater started", zap.String("schedule", r.schedule))
	r.cron.Start()

	<-ctx.Done()
	r.logger.Info("repeater stopping")
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	return nil
}

func (r *Repeater) tick(ctx context.Context) {
	for _, queueName := range priority.AllQueues() {
		r.drainQueue(ctx, queueName)
	}
	r.observeDepths(ctx)
}

// observeDepths reports each queue's live depth and DLQ backlog through the
// injected gauge hooks. Query failures are logged and skipped rather than
// aborting the tick — depth reporting must never block draining.
func (r *Repeater) observeDepths(ctx context.Context) {
	depths, err := r.broker.Depths(ctx)
	if err != nil {
		r.logger.Warn("queue depth query failed", zap.Error(err))
	} else {
		for queueName, depth := range depths {
			r.hooks.SetQueueDepth(queueName, int64(depth))
		}
	}

	for _, queueName := range priority.AllQueues() {
		n, err := r.dedup.DLQLen(ctx, string(queueName))
		if err != nil {
			r.logger.Warn("dlq depth query failed", zap.String("queue", string(queueName)), zap.Error(err))
			continue
		}
		r.hooks.SetDLQDepth(queueName, n)
	}
}

// drainQueue pops up to batchSize payloads and republishes each at the
// minimum priority. A republish failure pushes the payload back onto the
// list and stops this queue's loop, preserving FIFO order and avoiding a
// tight failure spin.
func (r *Repeater) drainQueue(ctx context.Context, queueName priority.QueueName) {
	log := r.logger.With(zap.String("queue", string(queueName)))

	for i := 0; i < r.batchSize; i++ {
		payload, ok, err := r.dedup.DLQPop(ctx, string(queueName))
		if err != nil {
			log.Error("dlq pop failed", zap.Error(err))
			return
		}
		if !ok {
			return
		}

		if err := r.broker.Publish(ctx, queueName, payload, repeaterPriority, ""); err != nil {
			log.Warn("republish failed, pushing payload back", zap.Error(err))
			if pushErr := r.dedup.DLQPush(ctx, string(queueName), payload); pushErr != nil {
				log.Error("dlq push-back failed, payload dropped", zap.Error(pushErr))
			}
			return
		}
	}
}
