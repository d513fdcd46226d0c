package clock

import (
	"sort"
	"time"
)

// Manual is a virtual-time scheduler. Time moves only through Advance and
// AdvanceTo, which run due callbacks in deadline order on the caller's goroutine.
type Manual struct {
	now    time.Duration
	origin time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Duration
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

// NewManual returns a Manual clock at monotonic zero whose wall time starts at origin.
func NewManual(origin time.Time) *Manual {
	return &Manual{origin: origin}
}

// Now implements Clock.
func (m *Manual) Now() time.Duration {
	return m.now
}

// Wall implements Clock.
func (m *Manual) Wall() time.Time {
	return m.origin.Add(m.now)
}

// AfterFunc implements Scheduler. Non-positive delays fire on the next Advance.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.now + d)
}

// AdvanceTo moves time forward to target, firing every timer that falls due.
// Timers scheduled by callbacks are honored if they fall due before target.
func (m *Manual) AdvanceTo(target time.Duration) {
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.remove(next)
		if next.at > m.now {
			m.now = next.at
		}
		next.fired = true
		next.f()
	}
	if target > m.now {
		m.now = target
	}
}

// Pending returns the number of scheduled timers that have neither fired nor been stopped.
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) nextDue(target time.Duration) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at == m.timers[j].at {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at < m.timers[j].at
	})
	if m.timers[0].at > target {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) {
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.m.remove(t)
	return true
}
