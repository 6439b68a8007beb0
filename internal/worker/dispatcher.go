package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/iago/line-relay/internal/domain"
	"github.com/iago/line-relay/internal/policy"
	"github.com/iago/line-relay/internal/queue"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

type State int32

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler processes one job. Errors and panics stay inside the drain cycle.
type Handler interface {
	Process(ctx context.Context, job domain.Job) error
}

type HandlerFunc func(ctx context.Context, job domain.Job) error

func (f HandlerFunc) Process(ctx context.Context, job domain.Job) error {
	return f(ctx, job)
}

// Dispatcher owns the job queue and runs at most one drain cycle at a time.
// A cycle is started lazily by Enqueue and ends once the queue is empty, so
// no goroutine is left running without work.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	logger  zerolog.Logger

	mu    sync.Mutex
	queue *queue.FIFO
	state State
	idle  chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher binds job processing to ctx; cancel it only after WaitIdle
// so in-flight jobs can finish.
func NewDispatcher(ctx context.Context, handler Handler, logger zerolog.Logger) *Dispatcher {
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		ctx:     ctx,
		handler: handler,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		queue:   queue.NewFIFO(),
		state:   StateIdle,
		idle:    idle,
	}
}

// Enqueue appends job and starts a drain cycle when none is active. It never
// waits for the job to be processed.
func (d *Dispatcher) Enqueue(_ context.Context, job domain.Job) error {
	if d.ctx.Err() != nil {
		return ErrDispatcherStopped
	}

	d.mu.Lock()
	d.queue.Push(job)
	depth := d.queue.Len()
	start := d.state == StateIdle
	if start {
		d.state = StateDraining
		d.idle = make(chan struct{})
	}
	d.mu.Unlock()

	d.logger.Debug().
		Str("job_id", job.ID).
		Int("queue_depth", depth).
		Bool("cycle_started", start).
		Msg("job enqueued")
	if start {
		go d.drain()
	}
	return nil
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) Depth() int {
	return d.queue.Len()
}

func (d *Dispatcher) Processed() int64 {
	return d.processed.Load()
}

func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

// WaitIdle blocks until the current drain cycle, if any, has finished.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain() {
	released := false
	defer func() {
		if released {
			return
		}
		if recovered := recover(); recovered != nil {
			d.logger.Error().Interface("panic", recovered).Msg("drain cycle aborted")
		}
		d.mu.Lock()
		restart := d.queue.Len() > 0
		if !restart {
			d.setIdleLocked()
		}
		d.mu.Unlock()
		if restart {
			go d.drain()
		}
	}()

	for {
		d.mu.Lock()
		job, ok := d.queue.Pop()
		if !ok {
			d.setIdleLocked()
			released = true
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		d.run(job)
	}
}

func (d *Dispatcher) run(job domain.Job) {
	started := time.Now()

	var err error
	var catcher panics.Catcher
	catcher.Try(func() {
		err = d.handler.Process(d.ctx, job)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = fmt.Errorf("job panicked: %w", recovered.AsError())
	}

	if err != nil {
		d.failed.Add(1)
		d.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("user", policy.MaskUserID(job.UserID)).
			Dur("elapsed", time.Since(started)).
			Msg("job failed")
		return
	}
	d.processed.Add(1)
}

func (d *Dispatcher) setIdleLocked() {
	if d.state == StateIdle {
		return
	}
	d.state = StateIdle
	close(d.idle)
}
