package engine

import (
	"time"

	"github.com/verte-zerg/reacto/internal/clock"
)

// gate tracks the reveal key and schedules the hold-threshold callback.
type gate struct {
	sched     clock.Scheduler
	threshold time.Duration
	down      bool
	downAt    time.Duration
	pending   slot
}

func newGate(sched clock.Scheduler, threshold time.Duration) gate {
	return gate{sched: sched, threshold: threshold}
}

// press records a down transition at the given time. Repeats while the key
// is already down are not transitions and report false.
func (g *gate) press(at time.Duration) bool {
	if g.down {
		return false
	}
	g.down = true
	g.downAt = at
	return true
}

// release clears the down state and cancels any pending reveal.
func (g *gate) release() {
	g.down = false
	g.pending.disarm()
}

// arm schedules fire once the key has been held for the threshold, counting
// time already spent down. It is a no-op while the key is up.
func (g *gate) arm(fire func()) {
	if !g.down {
		g.pending.disarm()
		return
	}
	remaining := g.threshold - (g.sched.Now() - g.downAt)
	if remaining < 0 {
		remaining = 0
	}
	g.pending.arm(g.sched.AfterFunc(remaining, func() {
		g.pending.release()
		fire()
	}))
}

func (g *gate) disarm() {
	g.pending.disarm()
}

func (g *gate) heldFor(now time.Duration) time.Duration {
	if !g.down {
		return 0
	}
	return now - g.downAt
}
