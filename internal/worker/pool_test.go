package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	logger := zap.NewNop()
	pool := NewPool(logger, 3)
	pool.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		err := pool.Submit(Job{
			Name:   "count",
			TaskID: int64(i),
			Run: func(ctx context.Context) error {
				ran.Add(1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	pool.Stop()
	assert.Equal(t, int32(10), ran.Load(), "stop must drain queued jobs")
}

func TestPool_FailingJobDoesNotStopWorkers(t *testing.T) {
	pool := NewPool(zap.NewNop(), 1)
	pool.Start(context.Background())

	var ran atomic.Int32
	require.NoError(t, pool.Submit(Job{Name: "fail", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, pool.Submit(Job{Name: "ok", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}}))

	pool.Stop()
	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(zap.NewNop(), 2)
	pool.Start(context.Background())
	pool.Stop()

	err := pool.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolStopped)

	// second stop is a no-op
	pool.Stop()
}

func TestPool_StopWithoutStartDrainsInline(t *testing.T) {
	pool := NewPool(zap.NewNop(), 2)

	var ran atomic.Int32
	require.NoError(t, pool.Submit(Job{Name: "queued", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}}))

	pool.Stop()
	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_GracefulShutdown(t *testing.T) {
	pool := NewPool(zap.NewNop(), 2)
	pool.Start(context.Background())

	require.NoError(t, pool.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}}))

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not stop gracefully within 5 seconds")
	}
}

func TestPool_CancelledContextReachesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(zap.NewNop(), 1)
	pool.Start(ctx)
	cancel()

	errCh := make(chan error, 1)
	require.NoError(t, pool.Submit(Job{Name: "ctx", Run: func(ctx context.Context) error {
		errCh <- ctx.Err()
		return ctx.Err()
	}}))
	pool.Stop()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestPool_SubmitDoesNotBlockOnBusyWorkers(t *testing.T) {
	pool := NewPool(zap.NewNop(), 1)
	pool.Start(context.Background())

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{Name: "busy", Run: func(ctx context.Context) error {
		close(started)
		<-gate
		return nil
	}}))
	<-started

	const queued = 200
	var ran atomic.Int32
	submitted := make(chan error, 1)
	go func() {
		for i := 0; i < queued; i++ {
			if err := pool.Submit(Job{Name: "queued", Run: func(ctx context.Context) error {
				ran.Add(1)
				return nil
			}}); err != nil {
				submitted <- err
				return
			}
		}
		submitted <- nil
	}()

	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked while the only worker was busy")
	}

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	// Stop waits for the in-flight job but must not be wedged by the queue.
	assert.ErrorIs(t, submitAfter(t, pool), ErrPoolStopped)
	close(gate)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the busy job finished")
	}
	assert.Equal(t, int32(queued), ran.Load())
}

func TestPool_UnstartedPoolAcceptsManyJobs(t *testing.T) {
	pool := NewPool(zap.NewNop(), 1)

	var ran atomic.Int32
	for i := 0; i < 200; i++ {
		require.NoError(t, pool.Submit(Job{Name: "queued", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	pool.Stop()
	assert.Equal(t, int32(200), ran.Load())
}

// submitAfter waits until the pool refuses new work.
func submitAfter(t *testing.T, pool *Pool) error {
	t.Helper()
	var err error
	require.Eventually(t, func() bool {
		err = pool.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
		return err != nil
	}, 5*time.Second, time.Millisecond)
	return err
}
