package alerts_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sudo-init-do/skillbridge/internal/alerts"
	"github.com/sudo-init-do/skillbridge/internal/apperr"
)

type funcSender func(ctx context.Context, job alerts.EmailJob) error

func (f funcSender) Deliver(ctx context.Context, job alerts.EmailJob) error { return f(ctx, job) }

var fastRetry = alerts.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	sender := funcSender(func(ctx context.Context, _ alerts.EmailJob) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	pool := alerts.NewEmailPool(sender, 1, 1, fastRetry, zaptest.NewLogger(t))
	pool.Start(context.Background())

	// First job occupies the worker, second fills the queue.
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "1"}))
	require.Eventually(t, func() bool {
		return pool.Submit(alerts.EmailJob{OrderID: "2"}) == nil
	}, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- pool.Submit(alerts.EmailJob{OrderID: "3"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, alerts.ErrQueueFull)
		assert.ErrorIs(t, err, apperr.ErrDelivery)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	pool.Close()
	assert.ErrorIs(t, pool.Submit(alerts.EmailJob{}), alerts.ErrQueueClosed)
}

func TestPoolRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	sender := funcSender(func(context.Context, alerts.EmailJob) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp 421")
		}
		return nil
	})
	pool := alerts.NewEmailPool(sender, 2, 8, fastRetry, zaptest.NewLogger(t))
	pool.Start(context.Background())
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "o1"}))
	pool.Close()

	assert.Equal(t, int32(3), calls.Load())
}

func TestPoolGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	sender := funcSender(func(context.Context, alerts.EmailJob) error {
		calls.Add(1)
		return errors.New("mailbox unavailable")
	})
	pool := alerts.NewEmailPool(sender, 1, 8, fastRetry, zaptest.NewLogger(t))
	pool.Start(context.Background())
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "o1"}))
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "o2"}))
	pool.Close()

	assert.Equal(t, int32(2*fastRetry.MaxRetries), calls.Load())
}

func TestPoolDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	sender := funcSender(func(_ context.Context, job alerts.EmailJob) error {
		mu.Lock()
		seen = append(seen, job.OrderID)
		mu.Unlock()
		return nil
	})
	pool := alerts.NewEmailPool(sender, 3, 16, fastRetry, zaptest.NewLogger(t))
	pool.Start(context.Background())
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: id}))
	}
	pool.Close()
	pool.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestPoolDrainsAfterStartContextCancelled(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})
	sender := funcSender(func(ctx context.Context, job alerts.EmailJob) error {
		<-release
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, job.OrderID)
		mu.Unlock()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	pool := alerts.NewEmailPool(sender, 1, 8, fastRetry, zaptest.NewLogger(t))
	pool.Start(ctx)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: id}))
	}

	cancel()
	close(release)
	pool.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestPoolSingleAttemptOnceStartContextCancelled(t *testing.T) {
	var calls atomic.Int32
	sender := funcSender(func(context.Context, alerts.EmailJob) error {
		calls.Add(1)
		return errors.New("mailbox unavailable")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := alerts.NewEmailPool(sender, 1, 8, fastRetry, zaptest.NewLogger(t))
	pool.Start(ctx)
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "o1"}))
	require.NoError(t, pool.Submit(alerts.EmailJob{OrderID: "o2"}))
	pool.Close()

	assert.Equal(t, int32(2), calls.Load())
}
