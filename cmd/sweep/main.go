// sweep runs one inactive-space sweep against the database and exits. It is
// meant for cron-style deployments that do not run the API's scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/angelurano/tr3s/internal/app"
	"github.com/angelurano/tr3s/internal/config"
	"github.com/angelurano/tr3s/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()
	cfg := config.Load()

	flagSet := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string (default: $DATABASE_URL)")
	flagSet.DurationVar(&cfg.InactiveThreshold, "threshold", cfg.InactiveThreshold, "deactivate spaces whose owner has been silent longer than this")
	timeout := flagSet.Duration("timeout", time.Minute, "give up after this long")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	if cfg.InactiveThreshold <= 0 {
		return fmt.Errorf("--threshold must be positive, got %s", cfg.InactiveThreshold)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBPool())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// A nil bus keeps change events in-process; nobody is listening here.
	service := app.New(cfg, store.NewPostgresStore(db), nil)
	result, err := service.DeactivateInactiveSpaces(ctx)
	if err != nil {
		return err
	}
	log.Printf(`{"job":"sweep","scanned":%d,"deactivated":%d,"failed":%d}`, result.Scanned, result.Deactivated, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d spaces failed to deactivate", result.Failed)
	}
	return nil
}
