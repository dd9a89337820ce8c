package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	mydb "github.com/marigold-cafe/pos-backend/pkg/db"
	"github.com/marigold-cafe/pos-backend/pkg/notify"
	"github.com/marigold-cafe/pos-backend/pkg/recon"
	"github.com/marigold-cafe/pos-backend/pkg/square"
	"github.com/marigold-cafe/pos-backend/pkg/store"
)

type App struct {
	DB        *pgxpool.Pool
	Store     *store.Postgres
	Redis     *redis.Client
	Square    *square.Client
	Engine    *recon.Engine
	Notifier  recon.Notifier
	JWTSecret []byte
	Cfg       Config
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	pool := mydb.MustOpenPool(ctx, cfg.DatabaseURL)
	defer pool.Close()
	st := store.NewPostgres(pool)

	// Redis (optional)
	var rdb *redis.Client
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not reachable; rate limiting and outbound queue disabled")
	} else {
		rdb = rc
		defer rdb.Close()
	}

	// POS platform client
	if cfg.Square.AccessToken == "" {
		log.Warn().Msg("square not configured; sparse payloads cannot be re-fetched")
	}
	sq := square.NewClient(cfg.Square)

	// outbound notifications
	queue := notify.NewQueue(rdb, cfg.NotifyQueueKey)
	defer queue.Close()

	app := &App{
		DB:        pool,
		Store:     st,
		Redis:     rdb,
		Square:    sq,
		Engine:    recon.NewEngine(st, st, st, sq, queue),
		Notifier:  queue,
		JWTSecret: []byte(cfg.JWTSecret),
		Cfg:       cfg,
	}

	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(RequestIDMiddleware)
	r.Use(SecurityHeadersMiddleware)
	r.Use(app.AccessLogMiddleware)

	// Health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(c); err != nil {
			log.Error().Err(err).Msg("db ping failed")
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ready")) })

	// Public webhooks
	r.Post("/v1/webhooks/square", app.SquareWebhook)

	// Staff auth
	r.With(app.RateLimitIP(20, time.Minute)).Post("/v1/auth/login", app.Login)

	// Protected
	r.Group(func(pr chi.Router) {
		pr.Use(app.AuthMiddleware)

		pr.Get("/v1/orders", app.ListRecentOrders)

		pr.Group(func(ad chi.Router) {
			ad.Use(app.RequireAdmin)
			ad.With(app.RateLimitUser(6, time.Minute)).Post("/v1/admin/reconcile", app.AdminReconcile)
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Msgf("API running on %s", addr)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("server shutdown complete")
}
