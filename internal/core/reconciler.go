package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
)

// Reconciler finalizes jobs left in analyzing, e.g. after a crash or an
// exhausted status write.
type Reconciler struct {
	jobs     repository.JobRepository
	status   *StatusWriter
	after    time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewReconciler(jobs repository.JobRepository, status *StatusWriter, after time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if after <= 0 {
		after = 10 * time.Minute
	}
	return &Reconciler{
		jobs:     jobs,
		status:   status,
		after:    after,
		interval: after / 2,
		now:      time.Now,
		logger:   logger,
	}
}

// Sweep marks every job analyzing for longer than the threshold as error/timeout.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stale, err := r.jobs.ListStale(ctx, constants.JobStatusAnalyzing, r.now().Add(-r.after))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stale {
		cause := fmt.Errorf("%w: no terminal status after %s", common.ErrExtractionTimeout, r.after)
		if err := r.status.Fail(ctx, job.ID, cause); err != nil {
			if errors.Is(err, common.ErrInvalidTransition) {
				// finished between list and write
				continue
			}
			r.logger.Error("reconcile.job.failed", "job_id", job.ID, "error", err)
			continue
		}
		n++
		r.logger.Warn("reconcile.job.timed_out", "job_id", job.ID, "updated_at", job.UpdatedAt)
	}
	if n > 0 {
		r.logger.Info("reconcile.sweep.ok", "stale", len(stale), "finalized", n)
	}
	return n, nil
}

// Run sweeps until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reconcile.sweep.failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
