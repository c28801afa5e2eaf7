package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTicker struct {
	mu    sync.Mutex
	times []time.Time
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (f *fakeTicker) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.times = append(f.times, now)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	return TickResult{Due: 1, Fired: 1}, f.err
}

func TestRunOnceUsesClock(t *testing.T) {
	mock := clock.NewMock()
	at := time.Date(2024, time.May, 5, 9, 0, 0, 0, time.UTC)
	mock.Set(at)

	ticker := &fakeTicker{}
	s := NewScheduler(ticker, mock, time.Minute, zap.NewNop())
	s.RunOnce(context.Background())

	mock.Add(time.Minute)
	ticker.err = errors.New("commit failed")
	s.RunOnce(context.Background())

	require.Len(t, ticker.times, 2)
	assert.True(t, ticker.times[0].Equal(at))
	assert.True(t, ticker.times[1].Equal(at.Add(time.Minute)))
}

func TestJobSkipsOverlappingRuns(t *testing.T) {
	ticker := &fakeTicker{block: make(chan struct{})}
	s := NewScheduler(ticker, clock.NewMock(), time.Minute, zap.NewNop())

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return ticker.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The second firing returns immediately while the first is still running.
	s.job.Run()
	assert.EqualValues(t, 1, ticker.calls.Load())

	close(ticker.block)
	<-done

	s.job.Run()
	assert.EqualValues(t, 2, ticker.calls.Load())
}

func TestStartFiresAndStopCancelsTick(t *testing.T) {
	ticker := &fakeTicker{block: make(chan struct{})}
	s := NewScheduler(ticker, clock.New(), time.Second, zap.NewNop())

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return ticker.calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return while a tick was blocked")
	}
}
