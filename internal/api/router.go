package api

import (
	"crypto/rsa"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/api/handler"
	apimw "github.com/notifyhub/pipeline/internal/api/middleware"
	"github.com/notifyhub/pipeline/internal/queue"
	"github.com/notifyhub/pipeline/internal/repository"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route under the api-notify/v1 prefix plus /health and /metrics.
// It is the single source of truth for the HTTP surface area.
func NewRouter(
	templates repository.TemplateStore,
	scheduled repository.ScheduledStore,
	periodic repository.PeriodicStore,
	broker queue.Broker,
	jwtPublicKey *rsa.PublicKey,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	mh := handler.NewMessageHandler(templates, broker, logger)
	th := handler.NewTemplateHandler(templates, logger)
	sh := handler.NewScheduledHandler(scheduled)
	ph := handler.NewPeriodicHandler(periodic)
	wsh := handler.NewWebsocketHandler(templates, broker, logger)
	mmh := handler.NewMetricsHandler(broker)
	hh := handler.NewHealthHandler()

	requireJWT := apimw.RequireJWT(jwtPublicKey)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api-notify/v1", func(r chi.Router) {
		r.Post("/messages/send-message/", mh.SendMessage)

		r.Get("/templates", th.List)
		r.Get("/templates/{id}", th.Get)
		r.Group(func(r chi.Router) {
			r.Use(requireJWT)
			r.Post("/templates", th.Create)
			r.Put("/templates/{id}", th.Update)
			r.Delete("/templates/{id}", th.Delete)
		})

		r.Get("/scheduled", sh.List)
		r.Get("/scheduled/{id}", sh.Get)
		r.Group(func(r chi.Router) {
			r.Use(requireJWT)
			r.Post("/scheduled", sh.Create)
			r.Put("/scheduled/{id}", sh.Update)
			r.Delete("/scheduled/{id}", sh.Delete)
		})

		r.Get("/periodic", ph.List)
		r.Get("/periodic/{id}", ph.Get)
		r.Group(func(r chi.Router) {
			r.Use(requireJWT)
			r.Post("/periodic", ph.Create)
			r.Put("/periodic/{id}", ph.Update)
			r.Delete("/periodic/{id}", ph.Delete)
		})

		r.Get("/sockets/", wsh.Sockets)
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireJWTCookie(jwtPublicKey))
			r.Get("/sockets/ws/send-message", wsh.SendMessageWS)
		})

		r.Get("/metrics", mmh.GetMetrics)
	})

	return r
}
