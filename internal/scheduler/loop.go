// Package scheduler runs periodic maintenance jobs for the LabFlow server.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/labflow/internal/auth"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 10 * time.Minute}
}

// Job is one unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Loop runs its jobs once per poll interval.
type Loop struct {
	jobs     []Job
	config   Config
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a new scheduler loop.
func NewLoop(cfg Config, logger *slog.Logger, jobs ...Job) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Loop{
		jobs:   jobs,
		config: cfg,
		logger: logger.With("component", "scheduler"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval, "jobs", len(l.jobs))
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			return nil
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop shuts the loop down and waits for the current tick to finish.
// It must only be called after Start.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
}

// Tick runs every job once. A failing job does not stop the others.
func (l *Loop) Tick(ctx context.Context) error {
	var errs []error
	for _, job := range l.jobs {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}
		l.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

// SessionSweep deletes expired sessions.
func SessionSweep(sessions *auth.SessionManager, logger *slog.Logger) Job {
	return Job{
		Name: "session-sweep",
		Run: func(ctx context.Context) error {
			n, err := sessions.CleanupExpiredSessions(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			return nil
		},
	}
}
