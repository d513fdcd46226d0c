package input

import (
	"time"

	"github.com/verte-zerg/reacto/internal/clock"
)

// ReleaseDetector synthesizes gate releases for terminals, which report key
// presses and auto-repeats but never releases. The gate counts as released
// once no gate press has arrived for the configured window.
type ReleaseDetector struct {
	sched  clock.Scheduler
	window time.Duration
	emit   func(Event)
	down   bool
	timer  clock.Timer
}

// NewReleaseDetector returns a detector forwarding events to emit.
func NewReleaseDetector(sched clock.Scheduler, window time.Duration, emit func(Event)) *ReleaseDetector {
	return &ReleaseDetector{sched: sched, window: window, emit: emit}
}

// Observe forwards ev, collapsing auto-repeated gate presses into one GateDown.
func (d *ReleaseDetector) Observe(ev Event) {
	switch ev.Kind {
	case GateDown:
		if !d.down {
			d.down = true
			d.emit(ev)
		}
		d.rearm()
	case GateUp:
		if d.down {
			d.cancel()
			d.down = false
			d.emit(ev)
		}
	default:
		d.emit(ev)
	}
}

// Down reports whether the gate is currently considered held.
func (d *ReleaseDetector) Down() bool {
	return d.down
}

// Reset forgets a held gate without emitting GateUp, so the next press is
// reported again.
func (d *ReleaseDetector) Reset() {
	d.cancel()
	d.down = false
}

func (d *ReleaseDetector) rearm() {
	d.cancel()
	d.timer = d.sched.AfterFunc(d.window, func() {
		d.timer = nil
		if !d.down {
			return
		}
		d.down = false
		d.emit(Event{Kind: GateUp, At: d.sched.Now()})
	})
}

func (d *ReleaseDetector) cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
