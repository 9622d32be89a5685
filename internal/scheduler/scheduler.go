// Package scheduler re-runs one collection request on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"mention_collector/internal/domain"
)

// Collector is satisfied by *collector.Collector.
type Collector interface {
	Collect(ctx context.Context, req domain.Request) (domain.Result, error)
}

type Scheduler struct {
	collector  Collector
	request    domain.Request
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(collector Collector, request domain.Request, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &Scheduler{
		collector:  collector,
		request:    request,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("brand", request.Brand),
	}
}

// Start runs immediately, then on every tick until ctx is cancelled. Each
// run gets a fresh job id from the collector.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runCollect(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCollect(ctx)
		}
	}
}

func (s *Scheduler) runCollect(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	result, err := s.collector.Collect(runCtx, s.request)
	if err != nil {
		s.logger.Error("collection failed", "error", err, "error_kind", domain.ErrorKind(err))
		return
	}
	s.logger.Info("scheduled collection finished",
		"job_id", result.JobID,
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
	)
}
