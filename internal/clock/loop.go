package clock

import (
	"context"
	"sync"
	"time"
)

// Loop is a real-time scheduler. Timer goroutines never run callbacks
// themselves; they post them to Tasks, and the single goroutine draining Tasks
// runs them. Stop must be called from that goroutine.
type Loop struct {
	origin time.Time
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
}

type loopTimer struct {
	timer   *time.Timer
	stopped bool
}

// NewLoop returns a Loop whose monotonic origin is now.
func NewLoop() *Loop {
	return &Loop{
		origin: time.Now(),
		tasks:  make(chan func()),
		done:   make(chan struct{}),
	}
}

// Now implements Clock using the monotonic reading of time.Now.
func (l *Loop) Now() time.Duration {
	return time.Since(l.origin)
}

// Wall implements Clock.
func (l *Loop) Wall() time.Time {
	return time.Now()
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	run := func() {
		if t.stopped {
			return
		}
		t.stopped = true
		f()
	}
	t.timer = time.AfterFunc(d, func() {
		select {
		case l.tasks <- run:
		case <-l.done:
		}
	})
	return t
}

// Tasks returns the channel of due callbacks. Receivers must run each one.
func (l *Loop) Tasks() <-chan func() {
	return l.tasks
}

// Run drains Tasks until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			task()
		}
	}
}

// Close releases timer goroutines blocked on posting. Pending callbacks are dropped.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Done is closed once Close has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (t *loopTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}
