package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []string
	block    chan struct{}
	deadline bool
}

func (p *recordingProcessor) ProcessJob(ctx context.Context, jobID string) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	p.deadline = p.deadline || hasDeadline
	p.seen = append(p.seen, jobID)
	if jobID == "bad" {
		return errors.New("boom")
	}
	return nil
}

func (p *recordingProcessor) jobs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestQueueProcessesAndDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{}
	q := NewProcessorQueue(proc, testLogger(), WithWorkers(2), WithQueueSize(8), WithProcessTimeout(time.Second))

	for _, id := range []string{"a", "bad", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{JobID: id}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.ElementsMatch(t, []string{"a", "bad", "c"}, proc.jobs())
	assert.True(t, proc.deadline, "jobs run under the safety timeout")

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{JobID: "late"}), ErrQueueClosed)
	q.Shutdown(ctx) // idempotent
}

func TestEnqueueBackpressureHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, testLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{JobID: "running"}))
	// wait until the worker holds "running" so the buffer is empty again
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{JobID: "buffered"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{JobID: "overflow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	q.Shutdown(context.Background())
	assert.ElementsMatch(t, []string{"running", "buffered"}, proc.jobs())
}

func TestShutdownReleasesBlockedProducers(t *testing.T) {
	defer goleak.VerifyNone(t)

	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, testLogger(), WithWorkers(1), WithQueueSize(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{JobID: "running"}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{JobID: "buffered"}))

	errc := make(chan error, 1)
	go func() { errc <- q.Enqueue(context.Background(), Job{JobID: "blocked"}) }()

	time.Sleep(20 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Shutdown(context.Background())
	}()

	assert.ErrorIs(t, <-errc, ErrQueueClosed)
	close(proc.block)
	<-done
	assert.NotContains(t, proc.jobs(), "blocked")
}
