package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/config"
	"github.com/notifyhub/pipeline/internal/db"
	"github.com/notifyhub/pipeline/internal/dedup"
	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/metrics"
	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/ratelimiter"
	"github.com/notifyhub/pipeline/internal/renderer"
	"github.com/notifyhub/pipeline/internal/repository"
	"github.com/notifyhub/pipeline/internal/sender"
	"github.com/notifyhub/pipeline/internal/subscriber"
	"github.com/notifyhub/pipeline/internal/worker"
)

// usage: workers <scheduler|repeater|former> [queue_name]
func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: workers <scheduler|repeater|former> [queue_name]")
		os.Exit(1)
	}
	workerType := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	broker, err := queue.Dial(cfg.RabbitMQURL(), logger)
	if err != nil {
		logger.Fatal("failed to dial broker", zap.Error(err))
	}
	defer broker.Close() //nolint:errcheck

	declareCtx, cancelDeclare := context.WithTimeout(ctx, cfg.ReadTimeout)
	defer cancelDeclare()
	if err := broker.DeclareTopology(declareCtx); err != nil {
		logger.Fatal("failed to declare broker topology", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr(), DB: cfg.RedisDB})
	defer redisClient.Close() //nolint:errcheck
	dedupStore := dedup.NewRedisStore(redisClient)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	templates := repository.NewTemplateRepository(pool)
	scheduledStore := repository.NewScheduledRepository(pool)
	periodicStore := repository.NewPeriodicRepository(pool)

	switch workerType {
	case "scheduler":
		auth := subscriber.NewMockAuthClient()
		resolver := subscriber.NewResolver(auth)
		s := worker.NewScheduler(cfg.PeriodicSchedule, cfg.ScheduledSchedule, periodicStore, scheduledStore, resolver, broker, cfg.PeriodicBatchSize, cfg.ScheduledBatchSize, logger)
		runUntilSignal(ctx, logger, "scheduler", s.Run)

	case "repeater":
		setQueueDepth, setDLQDepth := m.DepthHooks()
		rp := worker.NewRepeater(cfg.RepeaterSchedule, dedupStore, broker, cfg.RepeaterBatchSize, logger,
			worker.RepeaterHooks{SetQueueDepth: setQueueDepth, SetDLQDepth: setDLQDepth})
		runUntilSignal(ctx, logger, "repeater", rp.Run)

	case "former":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "former requires a queue_name argument")
			os.Exit(1)
		}
		queueName := priority.QueueName(os.Args[2])
		if !isKnownQueue(queueName) {
			fmt.Fprintf(os.Stderr, "unknown queue_name %q\n", queueName)
			os.Exit(1)
		}

		auth := subscriber.NewMockAuthClient()

		var shortener renderer.Shortener = renderer.NoopShortener{}
		if cfg.ShortenerEndpoint != "" {
			shortener = renderer.NewHTTPShortener(cfg.ShortenerEndpoint, cfg.ShortenerTimeout)
		}
		render := renderer.New(shortener)

		senders := sender.NewRegistry()
		senders.Register(domain.ChannelEmail, sender.NewEmailSender(sender.EmailConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}, logger))
		senders.Register(domain.ChannelSMS, nil)
		senders.Register(domain.ChannelPush, nil)

		limiters := ratelimiter.New(cfg.SenderRateLimitPerSecond)

		onSent, onFailed, onDropped, onDedupSkipped := m.FormerHooks()
		f := worker.NewFormer(
			queueName, broker, templates, scheduledStore, periodicStore, auth, dedupStore,
			render, senders, limiters, cfg.RedisMessageTTL, cfg.DefaultNotificationSubject, logger,
			worker.FormerHooks{OnSent: onSent, OnFailed: onFailed, OnDropped: onDropped, OnDedupSkipped: onDedupSkipped},
		)
		runUntilSignal(ctx, logger, "former", f.Run)

	default:
		fmt.Fprintf(os.Stderr, "unknown worker type %q: must be scheduler, repeater, or former\n", workerType)
		os.Exit(1)
	}
}

func isKnownQueue(q priority.QueueName) bool {
	for _, known := range priority.AllQueues() {
		if q == known {
			return true
		}
	}
	return false
}

func runUntilSignal(ctx context.Context, logger *zap.Logger, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		logger.Fatal(name+" exited with error", zap.Error(err))
	}
	logger.Info(name + " stopped cleanly")
}
