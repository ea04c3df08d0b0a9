package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
	"github.com/notifyhub/pipeline/internal/subscriber"
)

const subscriberBatchSize = 100

// Scheduler expands due periodic and scheduled records into published
// WorkUnits on its own cron tick. SkipIfStillRunning keeps ticks from a
// given job name overlapping, matching the requirement that cron jobs
// stay unique across ticks.
type Scheduler struct {
	cron               *cron.Cron
	periodicSchedule   string
	scheduledSchedule  string
	periodic           repository.PeriodicStore
	scheduledStore     repository.ScheduledStore
	resolver           *subscriber.Resolver
	broker             queue.Broker
	periodicBatchSize  int
	scheduledBatchSize int
	logger             *zap.Logger
}

func NewScheduler(
	periodicSchedule, scheduledSchedule string,
	periodic repository.PeriodicStore,
	scheduledStore repository.ScheduledStore,
	resolver *subscriber.Resolver,
	broker queue.Broker,
	periodicBatchSize, scheduledBatchSize int,
	logger *zap.Logger,
) *Scheduler {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	return &Scheduler{
		cron:               c,
		periodicSchedule:   periodicSchedule,
		scheduledSchedule:  scheduledSchedule,
		periodic:           periodic,
		scheduledStore:     scheduledStore,
		resolver:           resolver,
		broker:             broker,
		periodicBatchSize:  periodicBatchSize,
		scheduledBatchSize: scheduledBatchSize,
		logger:             logger,
	}
}

// Run registers both ticks and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.periodicSchedule, func() { s.tickPeriodic(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.scheduledSchedule, func() { s.tickScheduled(ctx) }); err != nil {
		return err
	}

	s.logger.Info("scheduler started",
		zap.String("periodic_schedule", s.periodicSchedule),
		zap.String("scheduled_schedule", s.scheduledSchedule))
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return nil
}

func (s *Scheduler) tickPeriodic(ctx context.Context) {
	now := time.Now().UTC()
	records, err := s.periodic.GetPending(ctx, now, s.periodicBatchSize)
	if err != nil {
		s.logger.Error("periodic get_pending failed", zap.Error(err))
		return
	}

	for _, rec := range records {
		log := s.logger.With(zap.String("periodic_id", rec.ID))

		schedule, err := cron.ParseStandard(rec.CronSchedule)
		if err != nil {
			log.Error("invalid cron_schedule, skipping record", zap.String("cron_schedule", rec.CronSchedule), zap.Error(err))
			continue
		}

		if err := s.expandAndPublish(ctx, rec.SubscriberQueryType, rec.SubscriberQueryParams, domain.MessagePeriodic, rec.ID, rec.TemplateID, rec.ChannelType, rec.EventType, rec.Context); err != nil {
			log.Error("periodic expansion failed, leaving next_run_time unadvanced", zap.Error(err))
			continue
		}

		nextRun := schedule.Next(now)
		if err := s.periodic.AdvanceRun(ctx, rec.ID, now, nextRun); err != nil {
			log.Error("failed to advance periodic run time", zap.Error(err))
		}
	}
}

func (s *Scheduler) tickScheduled(ctx context.Context) {
	now := time.Now().UTC()
	records, err := s.scheduledStore.GetPending(ctx, now, s.scheduledBatchSize)
	if err != nil {
		s.logger.Error("scheduled get_pending failed", zap.Error(err))
		return
	}

	for _, rec := range records {
		log := s.logger.With(zap.String("scheduled_id", rec.ID))

		if err := s.expandAndPublish(ctx, rec.SubscriberQueryType, rec.SubscriberQueryParams, domain.MessageScheduled, rec.ID, rec.TemplateID, rec.ChannelType, rec.EventType, rec.Context); err != nil {
			log.Error("scheduled expansion failed, leaving is_sent unadvanced", zap.Error(err))
			continue
		}

		if err := s.scheduledStore.MarkSent(ctx, rec.ID); err != nil {
			log.Error("failed to mark scheduled record sent", zap.Error(err))
		}
	}
}

// expandAndPublish resolves subscriberQueryType into batches and publishes
// one WorkUnit per batch. Any resolution or publish error aborts without
// advancing the caller's run-state, so the tick retries on the next cycle.
func (s *Scheduler) expandAndPublish(
	ctx context.Context,
	queryType string,
	params map[string]any,
	messageType domain.MessageType,
	recordID string,
	templateID string,
	channelType domain.ChannelType,
	eventType domain.EventType,
	unitContext map[string]any,
) error {
	batches, errs, err := s.resolver.Resolve(ctx, queryType, params, subscriberBatchSize)
	if err != nil {
		return err
	}

	queueName, msgPriority := priority.Route(eventType)
	notificationID := recordID

	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				// The fetcher closes batches whether it exhausted cleanly
				// or hit an error; check for a buffered error before
				// declaring success.
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			unit := domain.WorkUnit{
				TemplateID:     templateID,
				Context:        unitContext,
				Subscribers:    batch,
				EventType:      eventType,
				ChannelType:    channelType,
				NotificationID: &notificationID,
				MessageType:    messageType,
			}
			body, err := marshalWorkUnit(unit)
			if err != nil {
				return err
			}
			if err := s.broker.Publish(ctx, queueName, body, msgPriority, ""); err != nil {
				return err
			}
		case err := <-errs:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
