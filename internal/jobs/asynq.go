package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Asynq registers the sweep as a periodic task in Redis. Unique(interval)
// keeps replicas that share the scheduler from enqueueing it twice per tick.
type Asynq struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	interval  time.Duration
}

func NewAsynq(redisURL string, interval time.Duration, sweep Func) (*Asynq, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("asynq task %s failed: %v", task.Type(), err)
		}),
	})

	return &Asynq{
		scheduler: asynq.NewScheduler(opt, nil),
		server:    server,
		mux:       NewMux(sweep),
		interval:  interval,
	}, nil
}

// NewMux routes the sweep task type to sweep.
func NewMux(sweep Func) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeactivateInactiveSpaces, func(ctx context.Context, _ *asynq.Task) error {
		return sweep(ctx)
	})
	return mux
}

func (a *Asynq) Run(ctx context.Context) error {
	task := asynq.NewTask(TaskDeactivateInactiveSpaces, nil)
	cronExpr := fmt.Sprintf("@every %s", a.interval)
	if _, err := a.scheduler.Register(cronExpr, task, asynq.Unique(a.interval), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("asynq: register %s: %w", TaskDeactivateInactiveSpaces, err)
	}
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("asynq: start scheduler: %w", err)
	}
	if err := a.server.Start(a.mux); err != nil {
		a.scheduler.Shutdown()
		return fmt.Errorf("asynq: start server: %w", err)
	}

	<-ctx.Done()
	a.scheduler.Shutdown()
	a.server.Shutdown()
	return nil
}
