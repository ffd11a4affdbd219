package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mirclinic/clinic-core/internal/reservation"
	"github.com/mirclinic/clinic-core/internal/viewsync"
	"github.com/mirclinic/clinic-core/internal/visit"
)

type RouterConfig struct {
	Reservations *reservation.Service
	Visits       *visit.Service
	Hub          *viewsync.Hub
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(AccountMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Booking endpoints
	r.Get("/slots", availabilityHandler(cfg.Reservations))
	r.Post("/reservations", createReservationHandler(cfg.Reservations))
	r.Get("/reservations", listReservationsHandler(cfg.Reservations))
	r.Patch("/reservations/{id}", updateReservationHandler(cfg.Reservations))
	r.Post("/reservations/{id}/confirm", confirmReservationHandler(cfg.Reservations))
	r.Delete("/reservations/{id}", cancelReservationHandler(cfg.Reservations))

	// Visit endpoints
	r.Post("/visits", registerVisitHandler(cfg.Visits))
	r.Get("/visits/{id}", getVisitHandler(cfg.Visits))
	r.Post("/visits/{id}/call", callVisitHandler(cfg.Visits))
	r.Post("/visits/{id}/forward", forwardVisitHandler(cfg.Visits))
	r.Post("/visits/{id}/complete", completeVisitHandler(cfg.Visits))
	r.Post("/visits/{id}/payment", paymentHandler(cfg.Visits))
	r.Post("/visits/{id}/test-order", testOrderHandler(cfg.Visits))
	r.Post("/visits/{id}/test-result", testResultHandler(cfg.Visits))
	r.Get("/visits/{id}/documents/{kind}", issueDocumentHandler(cfg.Visits))

	// Live station feeds
	feed := NewStationFeed(cfg.Hub, cfg.Visits, cfg.Reservations)
	r.Get("/ws/stations", feed.Handle)

	return r
}
