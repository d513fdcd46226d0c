package engine

import "github.com/verte-zerg/reacto/internal/clock"

// slot holds at most one scheduled timer. Arming replaces and cancels the
// previous timer; every phase exit disarms the slots that phase armed.
type slot struct {
	timer clock.Timer
}

func (s *slot) arm(t clock.Timer) {
	s.disarm()
	s.timer = t
}

func (s *slot) disarm() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

// release forgets a timer whose callback is running.
func (s *slot) release() {
	s.timer = nil
}

func (s *slot) armed() bool {
	return s.timer != nil
}
