package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is one periodic task. Run receives the scheduler's context, which is
// cancelled on shutdown.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs in singleton mode: a tick that fires while the
// previous run is still going is rescheduled, never overlapped.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

func New(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Run registers every job, starts them immediately and blocks until ctx is
// done, then waits for in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	engine, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			_ = engine.Shutdown()
			return fmt.Errorf("job %q requires a positive interval and a run func", job.Name)
		}
		job := job
		_, err := engine.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(func() { s.execute(ctx, job) }),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = engine.Shutdown()
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}

	engine.Start()
	s.logger.Info("scheduler started",
		"event", "scheduler_started",
		"module", "internal/platform/scheduler",
		"layer", "platform",
		"jobs", len(s.jobs),
	)

	<-ctx.Done()
	if err := engine.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.logger.Info("scheduler stopped",
		"event", "scheduler_stopped",
		"module", "internal/platform/scheduler",
		"layer", "platform",
	)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	startedAt := time.Now()
	err := job.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled job failed",
			"event", "scheduler_job_failed",
			"module", "internal/platform/scheduler",
			"layer", "platform",
			"job", job.Name,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	s.logger.Debug("scheduled job finished",
		"event", "scheduler_job_finished",
		"module", "internal/platform/scheduler",
		"layer", "platform",
		"job", job.Name,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
}
