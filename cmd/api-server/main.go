package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirclinic/clinic-core/internal/api"
	"github.com/mirclinic/clinic-core/internal/config"
	"github.com/mirclinic/clinic-core/internal/db"
	"github.com/mirclinic/clinic-core/internal/documents"
	"github.com/mirclinic/clinic-core/internal/observability/metrics"
	redisclient "github.com/mirclinic/clinic-core/internal/redis"
	"github.com/mirclinic/clinic-core/internal/reservation"
	"github.com/mirclinic/clinic-core/internal/schedule"
	"github.com/mirclinic/clinic-core/internal/viewsync"
	"github.com/mirclinic/clinic-core/internal/visit"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s slot_capacity=%d", cfg.Env, cfg.HTTPPort, cfg.SlotCapacity)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	cal, err := schedule.NewCalendar(cfg)
	if err != nil {
		log.Fatalf("calendar config error: %v", err)
	}

	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	hub := viewsync.NewHub(m)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	reservations := reservation.NewService(reservation.NewPgRepository(pgPool), locker, cal, cfg, m, hub)
	visits := visit.NewService(visit.NewPgRepository(pgPool), cfg, documents.NewTextRenderer(), m, hub)

	router := api.NewRouter(api.RouterConfig{
		Reservations: reservations,
		Visits:       visits,
		Hub:          hub,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
