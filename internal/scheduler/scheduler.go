package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Task is one unit of periodic work. Its error is logged, never retried
// before the next tick.
type Task func(ctx context.Context) error

type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func New(logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

// Every registers task to run every interval, starting right away. A tick
// that arrives while the previous run is still going is skipped, so two runs
// of the same task never overlap. Each run gets its own timeout.
func (s *Scheduler) Every(ctx context.Context, name string, interval, timeout time.Duration, task Task) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			if err := task(runCtx); err != nil {
				s.logger.Error("scheduled task failed", "task", name, "error", err)
				return
			}
			s.logger.Debug("scheduled task finished", "task", name, "duration", time.Since(start))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
