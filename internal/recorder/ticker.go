package recorder

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// ticker is one armed sampling schedule.
type ticker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// startTickerLocked replaces any running ticker with a new one using the
// configured interval.
func (r *Recorder) startTickerLocked() {
	r.stopTickerLocked()
	if r.closed {
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	t := &ticker{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		interval: r.intervalLocked(),
	}
	// Created here rather than in the goroutine so the schedule starts now.
	clk := r.clock.Ticker(t.interval)
	r.ticker = t

	go r.runTicker(t, clk)
}

// ensureTickerLocked starts a ticker unless one is running.
func (r *Recorder) ensureTickerLocked() {
	if r.ticker == nil {
		r.startTickerLocked()
	}
}

// stopTickerLocked cancels the running ticker. It does not wait: a cycle
// blocked on the mutex sees the cancellation once it gets the lock and
// returns without sampling.
func (r *Recorder) stopTickerLocked() {
	if r.ticker == nil {
		return
	}
	r.ticker.cancel()
	r.ticker = nil
}

func (r *Recorder) runTicker(t *ticker, clk *clock.Ticker) {
	defer close(t.done)
	defer clk.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-clk.C:
			r.tick(t)
		}
	}
}

// tick runs one gather cycle unless t has been replaced or stopped.
func (r *Recorder) tick(t *ticker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ctx.Err() != nil || r.closed {
		return
	}
	r.gatherLocked(r.ctx)
}

// Interval returns the interval of the running ticker, or 0 when sampling is stopped.
func (r *Recorder) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticker == nil {
		return 0
	}
	return r.ticker.interval
}
