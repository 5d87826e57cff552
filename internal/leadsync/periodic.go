package leadsync

import (
	"context"
	"sync"
	"time"
)

// PeriodicConfig controls a periodic task. Tick and Stop replace the internal ticker in tests.
type PeriodicConfig struct {
	Interval time.Duration

	Tick <-chan time.Time
	Stop func()
}

// CancelHandle controls a running periodic task.
type CancelHandle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	resetCh chan struct{}
	once    sync.Once
}

// StartPeriodicTask runs fn immediately and then on every tick until the handle is cancelled
// or ctx ends. fn runs sequentially; a tick that fires while fn is running is coalesced.
func StartPeriodicTask(ctx context.Context, cfg PeriodicConfig, fn func(context.Context)) *CancelHandle {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	tick := cfg.Tick
	stop := cfg.Stop
	var reset func()
	if tick == nil {
		interval := cfg.Interval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
		reset = func() { ticker.Reset(interval) }
	}

	h := &CancelHandle{
		cancel:  cancel,
		done:    make(chan struct{}),
		resetCh: make(chan struct{}, 1),
	}

	go func() {
		defer close(h.done)
		defer func() {
			if stop != nil {
				stop()
			}
		}()

		fn(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.resetCh:
				if reset != nil {
					reset()
				}
			case <-tick:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()
	return h
}

// Cancel stops the task and waits for an in-flight run to return. Safe to call more than once.
func (h *CancelHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}

// Reset restarts the interval so the next tick is a full interval away.
func (h *CancelHandle) Reset() {
	if h == nil {
		return
	}
	select {
	case h.resetCh <- struct{}{}:
	default:
	}
}

// Done is closed once the task has stopped.
func (h *CancelHandle) Done() <-chan struct{} {
	return h.done
}
