// Package scheduler runs the periodic valuation sync.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndewijer/portfolio-sync/internal/logging"
	"github.com/ndewijer/portfolio-sync/internal/model"
)

// Syncer recomputes every lot.
type Syncer interface {
	SyncAll(ctx context.Context) ([]model.SyncOutcome, error)
}

// Scheduler triggers SyncAll on a cron schedule evaluated in UTC.
// A run that is still going when the next one is due causes that next run to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    cron.Job
	syncer Syncer
	logger *logging.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a scheduler for a standard five-field cron spec.
// An empty spec yields a disabled scheduler whose Start and Stop do nothing.
func New(spec string, syncer Syncer, logger *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		syncer: syncer,
		logger: logger,
		ctx:    context.Background(),
	}
	if spec == "" {
		return s, nil
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}

	adapter := cronLogger{logger: logger}
	s.job = cron.NewChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)).Then(cron.FuncJob(s.run))
	s.cron = cron.New(cron.WithLocation(time.UTC), cron.WithLogger(adapter))
	s.cron.Schedule(schedule, s.job)
	return s, nil
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// Start begins running the schedule in the background. Runs use ctx, so
// cancelling it aborts an in-flight sync.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cron == nil {
		s.logger.Info().Msg("sync scheduler disabled")
		return
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.logger.Info().Time("next_run", entries[0].Next).Msg("sync scheduler started")
	}
}

// Stop stops the schedule and waits for a running sync to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("sync scheduler stopped before running sync finished")
	}
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	outcomes, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled sync failed")
		return
	}

	counts := make(map[model.SyncStatus]int, 3)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	s.logger.Info().
		Int("lots", len(outcomes)).
		Int("synced", counts[model.SyncStatusSynced]).
		Int("skipped", counts[model.SyncStatusSkipped]).
		Int("failed", counts[model.SyncStatusFailed]).
		Dur("elapsed", time.Since(start)).
		Msg("scheduled sync finished")
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
