package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/model"
	"github.com/verte-zerg/reacto/internal/stats"
)

// Start begins a session: it schedules the session end and the countdown
// tick, then enters gated wait.
func (e *Engine) Start() error {
	if e.phase != model.PhaseIdle {
		return ErrStarted
	}
	now := e.sched.Now()
	e.phase = model.PhaseArmed
	e.trials = nil
	e.seq = 0
	e.active = nil
	e.prematurePending = false
	e.picker.Reset()
	e.sessionID = e.newID()
	e.startedAt = e.sched.Wall()
	e.deadline = now + model.SessionDuration
	e.pastDeadline = false
	e.remaining = model.SessionDuration

	e.endTimer.arm(e.sched.AfterFunc(model.SessionDuration, e.onSessionDeadline))
	e.tick.arm(e.sched.AfterFunc(model.TickInterval, e.onTick))
	e.logger.Info("session started", zap.String("session_id", e.sessionID))

	e.enterGatedWait()
	return nil
}

// Remaining returns the remaining session time as of the last tick.
func (e *Engine) Remaining() time.Duration {
	return e.remaining
}

func (e *Engine) onTick() {
	e.tick.release()
	if e.phase == model.PhaseFinished {
		return
	}
	now := e.sched.Now()
	e.remaining = e.deadline - now
	if e.remaining < 0 {
		e.remaining = 0
	}
	if now >= e.deadline && !e.pastDeadline {
		e.onSessionDeadline()
		if e.phase == model.PhaseFinished {
			return
		}
	}
	e.tick.arm(e.sched.AfterFunc(model.TickInterval, e.onTick))
}

func (e *Engine) onSessionDeadline() {
	e.endTimer.release()
	if e.phase == model.PhaseFinished || e.pastDeadline {
		return
	}
	e.pastDeadline = true
	e.remaining = 0
	e.gate.disarm()
	if e.phase == model.PhaseStimulusOn {
		e.deferredEnd.arm(e.sched.AfterFunc(model.MaxResponse+model.EndGrace, func() {
			e.deferredEnd.release()
			e.Finish()
		}))
		e.logger.Debug("session end deferred for in-flight trial", zap.Int("seq", e.active.Seq))
		return
	}
	e.Finish()
}

// Finish ends the session, cancels every timer and computes the stats
// snapshot. Repeated calls have no effect.
func (e *Engine) Finish() {
	if e.phase == model.PhaseFinished {
		return
	}
	wasRunning := e.phase != model.PhaseIdle
	e.disarmAll()
	if e.active != nil {
		e.active.Missed = true
		e.trials = append(e.trials, *e.active)
		e.active = nil
	}
	e.phase = model.PhaseFinished
	e.remaining = 0
	if !wasRunning {
		return
	}

	trials := append([]model.Trial(nil), e.trials...)
	session := model.Session{
		ID:        e.sessionID,
		StartedAt: e.startedAt,
		EndedAt:   e.sched.Wall(),
		Trials:    trials,
		Stats:     stats.Compute(trials),
	}
	e.session = &session
	e.logger.Info("session finished",
		zap.String("session_id", session.ID),
		zap.Int("trials", session.Stats.TotalTrials),
		zap.Int("correct", session.Stats.Correct),
		zap.Int("premature", session.Stats.Premature),
		zap.Int("wrong_key", session.Stats.WrongKey),
		zap.Int("missed", session.Stats.Missed))
	if e.onFinish != nil {
		e.onFinish(session)
	}
}

// Abort cancels every timer and enters the finished phase without producing
// a session.
func (e *Engine) Abort() {
	if e.phase == model.PhaseFinished {
		return
	}
	e.disarmAll()
	e.active = nil
	e.phase = model.PhaseFinished
	e.logger.Info("session aborted", zap.String("session_id", e.sessionID))
}

func (e *Engine) disarmAll() {
	e.endTimer.disarm()
	e.deferredEnd.disarm()
	e.tick.disarm()
	e.responseTimer.disarm()
	e.gate.disarm()
}

func newSessionID() string {
	return uuid.NewString()
}
