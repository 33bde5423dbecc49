package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/config"
	"github.com/AdamBeresnev/cueclub/internal/db"
	"github.com/AdamBeresnev/cueclub/internal/metrics"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/AdamBeresnev/cueclub/internal/scheduler"
	"github.com/AdamBeresnev/cueclub/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	database, err := db.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.Database.Driver, cfg.Database.MigrationsURL); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := realtime.NewHub(logger, allowOrigin(cfg.Server.AllowedOrigins))
	go hub.Run(ctx)

	publisher := realtime.Fanout{hub}
	if cfg.NATS.URL != "" {
		nc, err := realtime.Connect(cfg.NATS.URL, "cueclub")
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = append(publisher, realtime.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix))
		logger.Info("publishing events to nats", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	stores := service.NewStores(database)
	opts := service.Options{Publisher: publisher, Metrics: m, Logger: logger}
	brackets := service.NewBracketService(database, stores, opts)
	lifecycle := service.NewLifecycleService(database, stores, brackets, service.LifecycleConfig{
		Policy: bracket.Policy{
			TargetSize:      cfg.Lifecycle.TargetSize,
			EarlyLockWindow: cfg.Lifecycle.EarlyLockWindow,
		},
		Workers:             cfg.Lifecycle.Workers,
		AutoGenerateBracket: cfg.Lifecycle.AutoGenerateBracket,
		SeedingMethod:       bracket.SeedingMethod(cfg.Lifecycle.SeedingMethod),
	}, opts)

	app := &application{
		logger:      logger,
		metrics:     m,
		hub:         hub,
		brackets:    brackets,
		matches:     service.NewMatchService(database, stores, opts),
		tournaments: service.NewTournamentService(database, stores, opts),
		lifecycle:   lifecycle,
		jwtSecret:   []byte(cfg.Auth.JWTSecret),
		origins:     cfg.Server.AllowedOrigins,
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty, authenticated routes will reject every request")
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	err = sched.Every(ctx, "lifecycle", cfg.Lifecycle.Interval, cfg.Lifecycle.Interval, func(ctx context.Context) error {
		_, err := lifecycle.RunPass(ctx)
		return err
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "driver", cfg.Database.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func allowOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
