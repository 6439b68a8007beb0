package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/line-relay/internal/domain"
)

func waitIdle(t *testing.T, dispatcher *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.WaitIdle(ctx))
}

func TestDispatcherProcessesInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	dispatcher := NewDispatcher(context.Background(), HandlerFunc(func(_ context.Context, job domain.Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		return nil
	}), zerolog.Nop())

	want := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("job-%02d", i)
		want = append(want, id)
		require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: id}))
	}
	waitIdle(t, dispatcher)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
	assert.Equal(t, int64(50), dispatcher.Processed())
	assert.Equal(t, StateIdle, dispatcher.State())
	assert.Zero(t, dispatcher.Depth())
}

func TestDispatcherRunsOneJobAtATime(t *testing.T) {
	var active, peak atomic.Int32
	dispatcher := NewDispatcher(context.Background(), HandlerFunc(func(context.Context, domain.Job) error {
		current := active.Add(1)
		for {
			prev := peak.Load()
			if current <= prev || peak.CompareAndSwap(prev, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil
	}), zerolog.Nop())

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = dispatcher.Enqueue(context.Background(), domain.Job{ID: fmt.Sprintf("p%d-%d", p, i)})
			}
		}()
	}
	wg.Wait()
	waitIdle(t, dispatcher)

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int64(80), dispatcher.Processed())
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	dispatcher := NewDispatcher(context.Background(), HandlerFunc(func(_ context.Context, job domain.Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		switch job.ID {
		case "boom":
			panic("handler exploded")
		case "err":
			return errors.New("delivery failed")
		}
		return nil
	}), zerolog.Nop())

	for _, id := range []string{"a", "boom", "b", "err", "c"} {
		require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: id}))
	}
	waitIdle(t, dispatcher)

	mu.Lock()
	assert.Equal(t, []string{"a", "boom", "b", "err", "c"}, seen)
	mu.Unlock()
	assert.Equal(t, int64(3), dispatcher.Processed())
	assert.Equal(t, int64(2), dispatcher.Failed())
	assert.Equal(t, StateIdle, dispatcher.State())

	require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: "d"}))
	waitIdle(t, dispatcher)
	assert.Equal(t, int64(4), dispatcher.Processed())
}

func TestDispatcherStartsNewCycleAfterIdle(t *testing.T) {
	var count atomic.Int32
	dispatcher := NewDispatcher(context.Background(), HandlerFunc(func(context.Context, domain.Job) error {
		count.Add(1)
		return nil
	}), zerolog.Nop())

	for round := 0; round < 3; round++ {
		require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: fmt.Sprintf("r%d", round)}))
		waitIdle(t, dispatcher)
		assert.Equal(t, StateIdle, dispatcher.State())
	}
	assert.Equal(t, int32(3), count.Load())
}

func TestDispatcherReportsDrainingWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	dispatcher := NewDispatcher(context.Background(), HandlerFunc(func(context.Context, domain.Job) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}), zerolog.Nop())

	require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: "first"}))
	<-started
	require.NoError(t, dispatcher.Enqueue(context.Background(), domain.Job{ID: "second"}))

	assert.Equal(t, StateDraining, dispatcher.State())
	assert.Equal(t, 1, dispatcher.Depth())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, dispatcher.WaitIdle(ctx), context.DeadlineExceeded)

	close(release)
	waitIdle(t, dispatcher)
	assert.Equal(t, int64(2), dispatcher.Processed())
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := NewDispatcher(ctx, HandlerFunc(func(context.Context, domain.Job) error {
		return nil
	}), zerolog.Nop())
	cancel()

	err := dispatcher.Enqueue(context.Background(), domain.Job{ID: "late"})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
	assert.Equal(t, StateIdle, dispatcher.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "state(7)", State(7).String())
}
