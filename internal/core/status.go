package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/repository"
)

// StatusWriter writes terminal job statuses with bounded retries.
type StatusWriter struct {
	jobs   repository.JobRepository
	retry  common.Retrier
	logger *slog.Logger
}

func NewStatusWriter(jobs repository.JobRepository, logger *slog.Logger) *StatusWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusWriter{
		jobs: jobs,
		retry: common.Retrier{
			Attempts: 3,
			Backoff:  common.LinearBackoff(time.Second),
			Retryable: func(err error) bool {
				return !errors.Is(err, common.ErrInvalidTransition) && !errors.Is(err, common.ErrNotFound)
			},
		},
		logger: logger,
	}
}

// WithSleep replaces the backoff sleeper; tests use it to avoid real waits.
func (w *StatusWriter) WithSleep(fn common.SleepFunc) *StatusWriter {
	w.retry.Sleep = fn
	return w
}

// Complete moves an analyzing job to completed.
func (w *StatusWriter) Complete(ctx context.Context, jobID string) error {
	return w.write(ctx, repository.TransitionRequest{
		JobID: jobID,
		From:  constants.JobStatusAnalyzing,
		To:    constants.JobStatusCompleted,
	})
}

// Fail moves an analyzing job to error with the category derived from cause.
func (w *StatusWriter) Fail(ctx context.Context, jobID string, cause error) error {
	return w.write(ctx, repository.TransitionRequest{
		JobID:         jobID,
		From:          constants.JobStatusAnalyzing,
		To:            constants.JobStatusError,
		ErrorCategory: common.Classify(cause),
		ErrorMessage:  cause.Error(),
	})
}

// write ignores cancellation of ctx: a terminal status must land even when the
// job's own deadline is what ended it.
func (w *StatusWriter) write(ctx context.Context, req repository.TransitionRequest) error {
	ctx = context.WithoutCancel(ctx)
	err := w.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		err := w.jobs.Transition(ctx, req)
		if err != nil {
			w.logger.Warn("status.write.failed",
				"job_id", req.JobID,
				"to", string(req.To),
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrNotFound):
		return err
	default:
		w.logger.Error("status.write.exhausted",
			"severity", "critical",
			"job_id", req.JobID,
			"to", string(req.To),
			"error_category", string(req.ErrorCategory),
			"attempts", w.retry.Attempts,
			"error", err,
			"action", "job left in analyzing; reconciler will time it out",
		)
		return err
	}
}
