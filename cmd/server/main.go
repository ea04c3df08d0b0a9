package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/api"
	apimw "github.com/notifyhub/pipeline/internal/api/middleware"
	"github.com/notifyhub/pipeline/internal/config"
	"github.com/notifyhub/pipeline/internal/db"
	"github.com/notifyhub/pipeline/internal/metrics"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	jwtPublicKey, err := apimw.LoadPublicKey(cfg.JWTPublicKeyPath)
	if err != nil {
		logger.Fatal("failed to load jwt public key", zap.Error(err))
	}

	broker, err := queue.Dial(cfg.RabbitMQURL(), logger)
	if err != nil {
		logger.Fatal("failed to dial broker", zap.Error(err))
	}
	defer broker.Close() //nolint:errcheck

	brokerCtx, cancelBroker := context.WithTimeout(ctx, cfg.ReadTimeout)
	defer cancelBroker()
	if err := broker.DeclareTopology(brokerCtx); err != nil {
		logger.Fatal("failed to declare broker topology", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	_ = metrics.New(reg)

	templates := repository.NewTemplateRepository(pool)
	scheduled := repository.NewScheduledRepository(pool)
	periodic := repository.NewPeriodicRepository(pool)

	router := api.NewRouter(templates, scheduled, periodic, broker, jwtPublicKey, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}
