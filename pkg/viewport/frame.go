package viewport

import (
	"sync"
	"time"
)

// FrameID identifies a requested frame callback. The zero value is never
// issued.
type FrameID uint64

// Scheduler runs a callback at the next frame boundary.
type Scheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// Loop is a Scheduler that also exposes its frame clock, so a Session can
// dispatch frames from its own select loop.
type Loop interface {
	Scheduler
	Ticks() <-chan time.Time
	Dispatch() bool
}

// FrameLoop is a Scheduler paced by a clock. It holds at most one pending
// callback; requesting a frame replaces the pending one.
type FrameLoop struct {
	ticks  <-chan time.Time
	ticker *time.Ticker

	mu      sync.Mutex
	lastID  FrameID
	pending FrameID
	fn      func()
}

// NewFrameLoop creates a loop ticking fps times per second.
func NewFrameLoop(fps int) *FrameLoop {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	return &FrameLoop{ticks: t.C, ticker: t}
}

// NewFrameLoopWithTicks creates a loop driven by an external clock.
func NewFrameLoopWithTicks(ticks <-chan time.Time) *FrameLoop {
	return &FrameLoop{ticks: ticks}
}

// RequestFrame schedules fn for the next Dispatch.
func (l *FrameLoop) RequestFrame(fn func()) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastID++
	l.pending = l.lastID
	l.fn = fn
	return l.pending
}

// CancelFrame drops the pending callback if it is still id.
func (l *FrameLoop) CancelFrame(id FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id != 0 && id == l.pending {
		l.pending = 0
		l.fn = nil
	}
}

// Pending reports whether a callback is waiting for the next frame.
func (l *FrameLoop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fn != nil
}

// Ticks returns the frame clock.
func (l *FrameLoop) Ticks() <-chan time.Time {
	return l.ticks
}

// Dispatch runs the pending callback, if any. The callback may request the
// next frame.
func (l *FrameLoop) Dispatch() bool {
	l.mu.Lock()
	fn := l.fn
	l.pending, l.fn = 0, nil
	l.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Stop releases the clock. Pending callbacks are dropped.
func (l *FrameLoop) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
	l.mu.Lock()
	l.pending, l.fn = 0, nil
	l.mu.Unlock()
}
