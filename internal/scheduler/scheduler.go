package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"catalog_ingest/internal/domain"
)

// Runner is satisfied by service.Ingester.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

// Job binds a runner to a cron spec. Standard five-field specs and
// descriptors such as "@every 6h" are accepted, evaluated in UTC.
type Job struct {
	Name   string
	Spec   string
	Runner Runner
}

type Config struct {
	RunOnStart bool
	RunTimeout time.Duration
}

type Scheduler struct {
	cron       *cron.Cron
	jobs       []Job
	runOnStart bool
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(jobs []Job, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		jobs:       jobs,
		runOnStart: cfg.RunOnStart,
		runTimeout: cfg.RunTimeout,
		logger:     logger,
	}
}

// Start registers the jobs and blocks until ctx is cancelled. Running jobs
// are awaited before it returns.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		j := job
		if _, err := s.cron.AddFunc(j.Spec, func() { s.runJob(ctx, j) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Spec, err)
		}
		s.logger.Info("job scheduled", "job", j.Name, "spec", j.Spec)
	}

	if s.runOnStart {
		for _, job := range s.jobs {
			s.runJob(ctx, job)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	stats, err := job.Runner.Run(runCtx)
	if err != nil {
		s.logger.Error("scheduled run failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("scheduled run finished",
		"job", job.Name,
		"status", stats.Status,
		"duration", stats.Duration,
	)
}
