package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

// RetryPolicy bounds calls to the extraction service.
type RetryPolicy struct {
	MaxAttempts   int           // total attempts, default 3
	RateLimitBase time.Duration // 429: base, 2*base, 4*base ...; default 2s
	LinearStep    time.Duration // other failures: attempt*step; default 1s
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, RateLimitBase: 2 * time.Second, LinearStep: time.Second}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RateLimitBase <= 0 {
		p.RateLimitBase = d.RateLimitBase
	}
	if p.LinearStep <= 0 {
		p.LinearStep = d.LinearStep
	}
	return p
}

// Delay is the wait after the attempt-th failure with err.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	p = p.withDefaults()
	if IsRateLimited(err) {
		return common.ExponentialBackoff(p.RateLimitBase)(attempt)
	}
	return common.LinearBackoff(p.LinearStep)(attempt)
}

// Retrier adapts the policy to common.Retrier. Only AttemptErrors are retried.
func (p RetryPolicy) Retrier(sleep common.SleepFunc) common.Retrier {
	p = p.withDefaults()
	return common.Retrier{
		Attempts:  p.MaxAttempts,
		BackoffOn: p.Delay,
		Sleep:     sleep,
		Retryable: func(err error) bool {
			var ae *AttemptError
			return errors.As(err, &ae)
		},
	}
}

// AttemptError is one failed call: a transport error (Status 0) or a non-2xx status.
type AttemptError struct {
	Status  int
	Timeout bool
	Err     error
}

func (e *AttemptError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("attempt timed out: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("transport: %v", e.Err)
	}
}

func (e *AttemptError) Unwrap() error { return e.Err }

// NewAttemptError classifies a SendJSON failure.
func NewAttemptError(err error, status int) *AttemptError {
	ae := &AttemptError{Status: status, Err: err}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		ae.Timeout = true
	}
	return ae
}

func IsRateLimited(err error) bool {
	var ae *AttemptError
	return errors.As(err, &ae) && ae.Status == http.StatusTooManyRequests
}

// Exhausted maps the last attempt's failure to the pipeline sentinel.
func Exhausted(err error, attempts int) error {
	var ae *AttemptError
	switch {
	case err == nil:
		return nil
	case IsRateLimited(err):
		return fmt.Errorf("%w after %d attempts: %v", common.ErrRateLimited, attempts, err)
	case errors.As(err, &ae) && ae.Timeout:
		return fmt.Errorf("%w after %d attempts: %v", common.ErrExtractionTimeout, attempts, err)
	default:
		return fmt.Errorf("%w after %d attempts: %v", common.ErrExtractionAPI, attempts, err)
	}
}
