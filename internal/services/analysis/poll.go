package analysis

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 90
)

// ErrPollTimeout means the job was still running when polling gave up. The job
// itself keeps going; a later read will see its terminal status.
var ErrPollTimeout = errors.New("analysis still running; stopped waiting")

// StatusGetter is satisfied by *Service and by remote clients.
type StatusGetter interface {
	GetStatus(ctx context.Context, jobID string) (StatusView, error)
}

// Poll reads the job status every interval until it is terminal, for at most
// maxAttempts reads. It returns the last view seen.
func Poll(ctx context.Context, getter StatusGetter, jobID string, interval time.Duration, maxAttempts int) (StatusView, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}

	var last StatusView
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		view, err := getter.GetStatus(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = view
		if view.Status.IsTerminal() {
			return view, nil
		}
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return last, ctx.Err()
		case <-t.C:
		}
	}
	return last, ErrPollTimeout
}
