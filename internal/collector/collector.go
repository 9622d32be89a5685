// Package collector runs a job: one isolated branch per configured source,
// then a single aggregated notification.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mention_collector/internal/config"
	"mention_collector/internal/domain"
)

// Deps wires the collector. Publisher and Recorder are optional.
type Deps struct {
	Initializer Initializer
	Sources     SourceFactory
	Credentials CredentialProvider
	Store       Store
	Notifier    Notifier
	Publisher   Publisher
	Recorder    JobRecorder
}

type Collector struct {
	deps   Deps
	config config.CollectorConfig
	now    func() time.Time
	logger *slog.Logger
}

func New(deps Deps, cfg config.CollectorConfig, logger *slog.Logger) *Collector {
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = 5 * time.Minute
	}
	return &Collector{
		deps:   deps,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Collect validates req into a job and runs it. Validation failures wrap
// domain.ErrValidation and nothing is fetched.
func (c *Collector) Collect(ctx context.Context, req domain.Request) (domain.Result, error) {
	job, err := c.deps.Initializer.Init(req)
	if err != nil {
		return domain.Result{}, err
	}
	return c.Run(ctx, job)
}

// Run fans out over the job's sources, waits for every branch, then
// notifies once, with or without a notify URL. A failed branch never affects its siblings. The only
// fatal error is an unreachable store.
func (c *Collector) Run(ctx context.Context, job domain.JobDescriptor) (domain.Result, error) {
	logger := c.logger.With("job_id", job.JobID, "brand", job.Brand)
	started := c.now()

	if err := c.deps.Store.Ping(ctx); err != nil {
		logger.Error("store unreachable, aborting job", "error", err)
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return domain.Result{}, err
	}

	kinds := job.Kinds()
	logger.Info("starting collection", "sources", len(kinds), "limit", job.Limit)

	outcomes := make([]domain.Outcome, len(kinds))

	var g errgroup.Group
	if c.config.MaxParallel > 0 {
		g.SetLimit(c.config.MaxParallel)
	}
	for i, kind := range kinds {
		g.Go(func() error {
			outcomes[i] = c.runBranch(ctx, job, kind, logger)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.Result{
		JobID:     job.JobID,
		Brand:     job.Brand,
		Outcomes:  outcomes,
		Timestamp: c.now().UTC(),
	}

	result.Notification = c.notify(ctx, job, outcomes, logger)

	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.RecordJob(ctx, result); err != nil {
			logger.Error("failed to record job", "error", err)
		}
	}

	logger.Info("collection completed",
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
		"duration", c.now().Sub(started),
	)

	return result, nil
}

func (c *Collector) runBranch(ctx context.Context, job domain.JobDescriptor, kind domain.SourceKind, parent *slog.Logger) (out domain.Outcome) {
	logger := parent.With("source", kind)
	started := c.now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("branch panicked", "panic", r)
			out = domain.FailedOutcome(kind, fmt.Errorf("branch panicked: %v", r))
		}
	}()

	branchCtx, cancel := context.WithTimeout(ctx, c.config.BranchTimeout)
	defer cancel()

	creds, err := c.deps.Credentials.Credentials(branchCtx, kind)
	if err != nil {
		logger.Warn("no credentials for source", "error", err)
		return domain.FailedOutcome(kind, err)
	}

	src, err := c.deps.Sources.New(kind, creds)
	if err != nil {
		logger.Warn("failed to build source", "error", err)
		return domain.FailedOutcome(kind, err)
	}

	q := job.Query(kind)
	records, fetchErr := src.Fetch(branchCtx, q)
	if fetchErr != nil && branchCtx.Err() != nil && ctx.Err() == nil {
		fetchErr = fmt.Errorf("%w: branch timed out after %s: %w", domain.ErrSourceUnavailable, c.config.BranchTimeout, fetchErr)
	}

	stats := domain.BranchStats{Origin: q.Origin, Fetched: len(records)}

	// Partial results are kept even when the fetch failed.
	if len(records) > 0 {
		c.persist(ctx, job.JobID, records, &stats, logger)
	}

	stats.DurationMS = c.now().Sub(started).Milliseconds()

	if fetchErr != nil {
		logger.Error("branch failed",
			"error", fetchErr,
			"fetched", stats.Fetched,
			"written", stats.Written,
		)
		out := domain.FailedOutcome(kind, fetchErr)
		if stats.Fetched > 0 {
			out.Data = &stats
		}
		return out
	}

	logger.Info("branch completed",
		"fetched", stats.Fetched,
		"written", stats.Written,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration_ms", stats.DurationMS,
	)

	return domain.Outcome{Source: kind, Success: true, Data: &stats}
}

func (c *Collector) persist(ctx context.Context, jobID string, records []domain.Record, stats *domain.BranchStats, logger *slog.Logger) {
	res := c.deps.Store.UpsertBatch(ctx, records)
	stats.Written = res.Written
	stats.Skipped = res.Skipped
	stats.Errors = res.Errors

	if c.deps.Publisher == nil {
		return
	}
	for _, ch := range res.Changes {
		if err := c.deps.Publisher.Publish(ctx, jobID, ch.Record, ch.IsNew); err != nil {
			logger.Warn("failed to publish record", "key", ch.Record.Key(), "error", err)
			stats.Errors++
			continue
		}
		stats.Published++
	}
}

func (c *Collector) notify(ctx context.Context, job domain.JobDescriptor, outcomes []domain.Outcome, logger *slog.Logger) *domain.Notification {
	n := &domain.Notification{URL: job.NotifyURL}

	ack, err := c.deps.Notifier.Notify(ctx, job.NotifyURL, domain.Notice{
		JobID:    job.JobID,
		Brand:    job.Brand,
		Outcomes: outcomes,
	})
	n.StatusCode = ack.StatusCode
	if err != nil {
		if !errors.Is(err, domain.ErrNotificationFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
		}
		logger.Error("notification failed", "url", job.NotifyURL, "error", err)
		n.Error = err.Error()
		n.ErrorKind = domain.ErrorKind(err)
		return n
	}

	n.Delivered = true
	return n
}
