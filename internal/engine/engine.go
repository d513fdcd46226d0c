// Package engine implements the RYG reaction test: the gate controller, the
// trial sequencer, the response classifier and the session driver.
//
// An Engine is not safe for concurrent use. All methods and all timer
// callbacks must run on the scheduler's single thread of control.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/clock"
	"github.com/verte-zerg/reacto/internal/model"
)

// ErrStarted is returned by Start when the engine has left the idle phase.
var ErrStarted = errors.New("session already started")

// Engine owns the phase machine, the active trial and every timer.
type Engine struct {
	sched    clock.Scheduler
	logger   *zap.Logger
	picker   Source
	newID    func() string
	onFinish func(model.Session)

	phase   model.Phase
	focused bool
	gate    gate

	active           *model.Trial
	trials           []model.Trial
	seq              int
	prematurePending bool

	lastAcceptedAt time.Duration
	hasAccepted    bool

	sessionID    string
	startedAt    time.Time
	deadline     time.Duration
	pastDeadline bool
	remaining    time.Duration

	endTimer      slot
	deferredEnd   slot
	tick          slot
	responseTimer slot

	session *model.Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSource replaces the time-seeded stimulus picker.
func WithSource(src Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.picker = src
		}
	}
}

// WithFinishHandler registers a callback invoked once with the finalized session.
func WithFinishHandler(fn func(model.Session)) Option {
	return func(e *Engine) {
		e.onFinish = fn
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New returns an idle Engine driven by sched.
func New(sched clock.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		sched:     sched,
		logger:    zap.NewNop(),
		picker:    NewPicker(0),
		newID:     newSessionID,
		phase:     model.PhaseIdle,
		focused:   true,
		gate:      newGate(sched, model.HoldThreshold),
		remaining: model.SessionDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Phase returns the current phase.
func (e *Engine) Phase() model.Phase {
	return e.phase
}

// Session returns the finalized session once the engine has finished.
func (e *Engine) Session() (model.Session, bool) {
	if e.session == nil {
		return model.Session{}, false
	}
	return *e.session, true
}

func (e *Engine) enterGatedWait() {
	e.phase = model.PhaseGatedWait
	if e.pastDeadline {
		e.gate.disarm()
		return
	}
	e.gate.arm(e.onGateSatisfied)
}

func (e *Engine) onGateSatisfied() {
	if e.phase != model.PhaseGatedWait || !e.gate.down {
		return
	}
	if e.pastDeadline || e.sched.Now() >= e.deadline {
		return
	}
	e.reveal()
}

func (e *Engine) reveal() {
	e.gate.disarm()
	now := e.sched.Now()
	e.seq++
	trial := &model.Trial{
		Seq:       e.seq,
		Category:  e.picker.Next(),
		OnsetAt:   now,
		Premature: e.prematurePending,
	}
	e.prematurePending = false
	e.active = trial
	e.phase = model.PhaseStimulusOn

	seq := trial.Seq
	e.responseTimer.arm(e.sched.AfterFunc(model.MaxResponse, func() {
		e.onResponseDeadline(seq)
	}))
	e.logger.Debug("stimulus revealed",
		zap.Int("seq", trial.Seq),
		zap.String("category", trial.Category.String()),
		zap.Bool("premature", trial.Premature),
		zap.Duration("onset", now))
}

func (e *Engine) onResponseDeadline(seq int) {
	if e.phase != model.PhaseStimulusOn || e.active == nil || e.active.Seq != seq {
		return
	}
	e.responseTimer.release()
	e.active.Missed = true
	e.finalizeActive()
}

// finalizeActive moves the active trial into the log and returns to gated wait.
func (e *Engine) finalizeActive() {
	e.responseTimer.disarm()
	trial := *e.active
	e.active = nil
	e.trials = append(e.trials, trial)
	e.logger.Debug("trial finalized",
		zap.Int("seq", trial.Seq),
		zap.Bool("correct", trial.Correct),
		zap.String("wrong_key", trial.WrongKey),
		zap.Bool("missed", trial.Missed),
		zap.Bool("premature", trial.Premature))
	e.enterGatedWait()
}

// View is a snapshot of engine state for presentation.
type View struct {
	Phase       model.Phase
	Remaining   time.Duration
	Stimulus    model.Category
	HasStimulus bool
	GateDown    bool
	GateHeld    time.Duration
	Trials      []model.Trial
	Stats       *model.Stats
}

// View returns a snapshot safe to retain after further transitions.
func (e *Engine) View() View {
	v := View{
		Phase:     e.phase,
		Remaining: e.remaining,
		GateDown:  e.gate.down,
		GateHeld:  e.gate.heldFor(e.sched.Now()),
		Trials:    append([]model.Trial(nil), e.trials...),
	}
	if e.active != nil {
		v.Stimulus = e.active.Category
		v.HasStimulus = true
	}
	if e.session != nil {
		stats := e.session.Stats
		v.Stats = &stats
	}
	return v
}
