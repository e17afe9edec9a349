// Command authd runs the studydeck authentication service: credential
// signup/login, refresh-token rotation, and the email-verification and
// password-recovery flows, over Postgres and Redis.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/studydeck/authcore"
	"github.com/studydeck/authcore/httpapi"
	"github.com/studydeck/authcore/internal/config"
	"github.com/studydeck/authcore/internal/logging"
	"github.com/studydeck/authcore/internal/userstore"
	"github.com/studydeck/authcore/notify"
	"github.com/studydeck/authcore/password"
	"github.com/studydeck/authcore/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	sugar.Info("starting authd")

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	users := userstore.New(db, cfg.StoreTimeout)
	if err := users.EnsureSchema(context.Background()); err != nil {
		sugar.Fatalf("schema: %v", err)
	}

	sessions := session.NewStore(rdb, session.DefaultPrefix, cfg.StoreTimeout)

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		sugar.Fatalf("password hasher: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	engine, err := authcore.New(authcore.Config{
		JWTSecret:        []byte(cfg.JWTSecret),
		Issuer:           cfg.Issuer,
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
		CodeTTL:          cfg.CodeTTL,
		ResetMaxAttempts: cfg.ResetMaxAttempts,
	}, authcore.Deps{
		Log:      sugar,
		Users:    users,
		Sessions: sessions,
		Hasher:   hasher,
		Notifier: notify.NewLogSender(sugar),
		Roles:    users,
		Metrics:  authcore.NewMetrics(registry),
	})
	if err != nil {
		// A broken signing key must never serve traffic.
		sugar.Fatalf("engine: %v", err)
	}

	server := httpapi.NewServer(engine, sugar,
		httpapi.HealthCheck{Name: "redis", Check: func(r *http.Request) error {
			return sessions.Ping(r.Context())
		}},
		httpapi.HealthCheck{Name: "postgres", Check: func(r *http.Request) error {
			return users.Ping(r.Context())
		}},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("http shutdown: %v", err)
	}

	sugar.Info("goodbye")
}
