package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/angelurano/tr3s/internal/app"
	"github.com/angelurano/tr3s/internal/config"
	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/jobs"
	"github.com/angelurano/tr3s/internal/realtime"
	"github.com/angelurano/tr3s/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: .env not loaded: %v", err)
	}
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dataStore app.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBPool())
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		dataStore = store.NewPostgresStore(db)
	} else {
		log.Printf("WARNING: DATABASE_URL not set, using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	var bus feed.Bus = feed.NewLocalBus()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisBus, err := feed.NewRedisBus(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisBus.Close()
		log.Printf("Using Redis for the change feed")
		bus = redisBus
	}

	service := app.New(cfg, dataStore, bus)
	hub := realtime.NewHub()

	var scheduler jobs.Runner = jobs.Ticker{Name: jobs.TaskDeactivateInactiveSpaces, Interval: cfg.SweepInterval, Fn: service.Sweep}
	if cfg.Scheduler == config.SchedulerAsynq {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Fatalf("TR3S_SCHEDULER=asynq requires REDIS_URL")
		}
		asynqRunner, err := jobs.NewAsynq(cfg.RedisURL, cfg.SweepInterval, service.Sweep)
		if err != nil {
			log.Fatalf("asynq setup failed: %v", err)
		}
		scheduler = asynqRunner
	}

	httpServer := app.NewHTTPServer(service, hub, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("tr3s API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return app.NewPusher(service, hub).Run(groupCtx)
	})
	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
