package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper evicts stale entries and reports how many were dropped
type Sweeper interface {
	Sweep() int
}

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler whose specs include a seconds field
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// AddCacheSweep registers a cache sweep on spec. An empty spec registers nothing.
func (s *Scheduler) AddCacheSweep(spec string, sw Sweeper) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if n := sw.Sweep(); n > 0 {
			log.Info().Int("evicted", n).Msg("cache sweep")
		}
	}); err != nil {
		return fmt.Errorf("register cache sweep: %w", err)
	}
	return nil
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", s.Jobs()).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	log.Info().Msg("scheduler stopped")
}
