// Package scheduler repeats ingestion runs: once, back to back with a pause, or on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/logging"
)

// Mode selects how runs repeat
type Mode string

// Modes
const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
	ModeScheduled  Mode = "scheduled"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOnce, ModeContinuous, ModeScheduled:
		return m, nil
	case "":
		return ModeOnce, nil
	default:
		return "", fmt.Errorf("unknown run mode %q (want once, continuous or scheduled)", s)
	}
}

// RunFunc performs one run. A returned error is logged; it never stops a repeating schedule.
type RunFunc func(ctx context.Context) error

// Scheduler drives a RunFunc
type Scheduler struct {
	run    RunFunc
	logger *zap.Logger
}

// New creates a Scheduler
func New(run RunFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{run: run, logger: logging.OrNop(logger)}
}

// Once performs a single run and returns its error
func (s *Scheduler) Once(ctx context.Context) error {
	return s.safeRun(ctx)
}

// Continuous runs, waits interval, and repeats until ctx is done
func (s *Scheduler) Continuous(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	for {
		if err := s.safeRun(ctx); err != nil {
			s.logger.Error("run failed", zap.Error(err))
		}
		s.logger.Info("waiting for next run", zap.Duration("interval", interval))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Scheduled runs immediately and then on every cron tick until ctx is done.
// spec accepts the robfig/cron syntax, e.g. "@every 1h" or "0 0 * * * *".
// A tick that fires while a run is still going is skipped, and Scheduled
// returns only after the in-flight run has finished.
func (s *Scheduler) Scheduled(ctx context.Context, spec string) error {
	busy := make(chan struct{}, 1)
	c := cron.New()
	err := c.AddFunc(spec, func() {
		select {
		case busy <- struct{}{}:
		default:
			s.logger.Warn("previous run still in progress, skipping tick")
			return
		}
		defer func() { <-busy }()
		if err := s.safeRun(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	if err := s.safeRun(ctx); err != nil {
		s.logger.Error("initial run failed", zap.Error(err))
	}

	c.Start()
	s.logger.Info("scheduler started", zap.String("schedule", spec))
	<-ctx.Done()
	c.Stop()
	// cron.Stop does not wait for running jobs
	busy <- struct{}{}
	s.logger.Info("scheduler stopped")
	return nil
}

// Run dispatches on mode. interval is used by continuous mode, spec by scheduled mode;
// an empty spec in scheduled mode becomes "@every <interval>".
func (s *Scheduler) Run(ctx context.Context, mode Mode, interval time.Duration, spec string) error {
	switch mode {
	case ModeOnce, "":
		return s.Once(ctx)
	case ModeContinuous:
		return s.Continuous(ctx, interval)
	case ModeScheduled:
		if spec == "" {
			if interval <= 0 {
				return errors.New("scheduled mode needs a cron spec or a positive interval")
			}
			spec = "@every " + interval.String()
		}
		return s.Scheduled(ctx, spec)
	default:
		return fmt.Errorf("unknown run mode %q", mode)
	}
}

// safeRun turns a panicking run into an error so repeating modes survive it
func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return s.run(ctx)
}
