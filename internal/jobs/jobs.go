// Package jobs runs the periodic maintenance work of the scheduling core.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultNoShowSchedule = "*/15 * * * *"
	DefaultNoShowGrace    = 30 * time.Minute
	defaultRunTimeout     = 5 * time.Minute
)

// NoShowSweeper is satisfied by the scheduling service.
type NoShowSweeper interface {
	SweepNoShows(ctx context.Context, grace time.Duration) (int, error)
}

type Config struct {
	NoShowSchedule string
	NoShowGrace    time.Duration
	RunTimeout     time.Duration
	Location       *time.Location
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper NoShowSweeper
	grace   time.Duration
	timeout time.Duration
	log     *slog.Logger
}

// New registers the no-show sweep. Runs never overlap: a slow sweep makes
// the next tick skip rather than pile up.
func New(sweeper NoShowSweeper, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.NoShowSchedule == "" {
		cfg.NoShowSchedule = DefaultNoShowSchedule
	}
	if cfg.NoShowGrace < 0 {
		return nil, fmt.Errorf("no-show grace must not be negative, got %s", cfg.NoShowGrace)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Scheduler{
		sweeper: sweeper,
		grace:   cfg.NoShowGrace,
		timeout: cfg.RunTimeout,
		log:     log.With(slog.String("component", "jobs")),
	}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(cfg.NoShowSchedule, s.SweepNoShows); err != nil {
		return nil, fmt.Errorf("no-show schedule %q: %w", cfg.NoShowSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("job scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for a running one until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepNoShows runs one sweep. It is the cron job body and is also exposed
// for one-off runs.
func (s *Scheduler) SweepNoShows() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	n, err := s.sweeper.SweepNoShows(ctx, s.grace)
	if err != nil {
		s.log.Error("no-show sweep failed", slog.Any("err", err), slog.Int("marked", n))
		return
	}
	s.log.Info("no-show sweep finished", slog.Int("marked", n), slog.Duration("took", time.Since(started)))
}
