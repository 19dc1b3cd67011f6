// Package jobs schedules the periodic space sweep, either in-process or through asynq.
package jobs

import (
	"context"
	"log"
	"time"
)

const TaskDeactivateInactiveSpaces = "spaces:deactivate_inactive"

type Func func(ctx context.Context) error

type Runner interface {
	Run(ctx context.Context) error
}

// Ticker runs Fn every Interval until the context is cancelled. Failures are
// logged and the next tick runs regardless.
type Ticker struct {
	Name     string
	Interval time.Duration
	Fn       Func
}

func (t Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.Fn(ctx); err != nil {
				log.Printf("job %s failed: %v", t.Name, err)
			}
		}
	}
}
