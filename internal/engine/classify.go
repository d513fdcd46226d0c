package engine

import (
	"time"
	"unicode"

	"github.com/verte-zerg/reacto/internal/input"
	"github.com/verte-zerg/reacto/internal/model"
)

// Handle routes a normalized input event. Events are dropped while unfocused.
func (e *Engine) Handle(ev input.Event) {
	if !e.focused {
		return
	}
	switch ev.Kind {
	case input.GateDown:
		e.gateDown(ev.At)
	case input.GateUp:
		e.gateUp()
	case input.CandidateKey:
		e.classify(ev.Key, ev.At)
	}
}

// SetFocused gates input processing. Losing focus releases the gate.
func (e *Engine) SetFocused(focused bool) {
	e.focused = focused
	if !focused {
		e.gateUp()
	}
}

// Focused reports whether input is being processed.
func (e *Engine) Focused() bool {
	return e.focused
}

func (e *Engine) gateDown(at time.Duration) {
	if !e.gate.press(at) {
		return
	}
	if e.phase == model.PhaseGatedWait && !e.pastDeadline {
		e.gate.arm(e.onGateSatisfied)
	}
}

func (e *Engine) gateUp() {
	e.gate.release()
}

func (e *Engine) classify(key rune, at time.Duration) {
	if e.hasAccepted && at-e.lastAcceptedAt < model.Debounce {
		return
	}
	e.hasAccepted = true
	e.lastAcceptedAt = at

	switch e.phase {
	case model.PhaseGatedWait:
		if _, ok := model.ParseCategory(key); ok && !e.prematurePending {
			e.prematurePending = true
		}
	case model.PhaseStimulusOn:
		if e.active == nil || !unicode.IsLetter(key) {
			return
		}
		e.respond(key, at)
	}
}

func (e *Engine) respond(key rune, at time.Duration) {
	trial := e.active
	respondedAt := at
	rt := float64(at-trial.OnsetAt) / float64(time.Millisecond)
	trial.RespondedAt = &respondedAt
	trial.ReactionTimeMs = &rt
	if c, ok := model.ParseCategory(key); ok && c == trial.Category {
		trial.Correct = true
	} else {
		trial.WrongKey = string(unicode.ToUpper(key))
	}
	e.finalizeActive()
}
