package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/reacto/internal/clock"
	"github.com/verte-zerg/reacto/internal/input"
	"github.com/verte-zerg/reacto/internal/model"
)

const ms = time.Millisecond

type harness struct {
	t        *testing.T
	e        *Engine
	clk      *clock.Manual
	sessions []model.Session
}

func newHarness(t *testing.T, categories ...model.Category) *harness {
	t.Helper()
	h := &harness{t: t, clk: clock.NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))}
	h.e = New(h.clk,
		WithSource(NewScript(categories, 1)),
		WithIDGenerator(func() string { return "test-session" }),
		WithFinishHandler(func(s model.Session) { h.sessions = append(h.sessions, s) }),
	)
	require.NoError(t, h.e.Start())
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	return h
}

func (h *harness) at(d time.Duration) {
	h.clk.AdvanceTo(d)
}

func (h *harness) gateDown() {
	h.e.Handle(input.Event{Kind: input.GateDown, At: h.clk.Now()})
}

func (h *harness) gateUp() {
	h.e.Handle(input.Event{Kind: input.GateUp, At: h.clk.Now()})
}

func (h *harness) key(r rune) {
	h.e.Handle(input.Event{Kind: input.CandidateKey, Key: r, At: h.clk.Now()})
}

// reveal holds the gate from now until the threshold and releases it.
func (h *harness) reveal() model.Trial {
	h.t.Helper()
	h.gateDown()
	h.clk.Advance(model.HoldThreshold)
	require.Equal(h.t, model.PhaseStimulusOn, h.e.Phase())
	h.gateUp()
	return *h.e.active
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.e.Start(), ErrStarted)
}

func TestGateReleaseBeforeThresholdDoesNotReveal(t *testing.T) {
	h := newHarness(t, model.Red)
	h.gateDown()
	h.at(150 * ms)
	h.gateUp()
	h.at(2 * time.Second)

	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.False(t, h.e.View().HasStimulus)
	require.False(t, h.e.gate.pending.armed())
}

func TestGateHoldRevealsExactlyOnce(t *testing.T) {
	h := newHarness(t, model.Green, model.Red)
	h.gateDown()
	h.at(199 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())

	h.at(200 * ms)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	v := h.e.View()
	require.True(t, v.HasStimulus)
	require.Equal(t, model.Green, v.Stimulus)

	h.at(3 * time.Second)
	require.Equal(t, 1, h.e.seq)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
}

func TestGateAutoRepeatIsNotANewTransition(t *testing.T) {
	h := newHarness(t, model.Green)
	h.gateDown()
	h.at(150 * ms)
	h.gateDown()
	h.at(200 * ms)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
}

func TestGateRepressRestartsHold(t *testing.T) {
	h := newHarness(t, model.Yellow)
	h.gateDown()
	h.at(150 * ms)
	h.gateUp()
	h.at(300 * ms)
	h.gateDown()
	h.at(499 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	h.at(500 * ms)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	require.Equal(t, 500*ms, h.e.active.OnsetAt)
}

func TestGateHeldAcrossTrialsRevealsOnReentry(t *testing.T) {
	h := newHarness(t, model.Yellow, model.Red)
	h.gateDown()
	h.at(200 * ms)
	h.at(510 * ms)
	h.key('y')
	require.Len(t, h.e.trials, 1)

	h.clk.Advance(0)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	require.Equal(t, model.Red, h.e.active.Category)
}

func TestCorrectResponseScenario(t *testing.T) {
	h := newHarness(t, model.Yellow)
	trial := h.reveal()
	h.at(trial.OnsetAt + 310*ms)
	h.key('Y')

	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Len(t, h.e.trials, 1)
	got := h.e.trials[0]
	require.NotNil(t, got.RespondedAt)
	require.Equal(t, 310*ms, *got.RespondedAt-got.OnsetAt)
	require.NotNil(t, got.ReactionTimeMs)
	require.Equal(t, 310.0, *got.ReactionTimeMs)
	require.True(t, got.Correct)
	require.False(t, got.Missed)
	require.Empty(t, got.WrongKey)
}

func TestWrongKeyScenario(t *testing.T) {
	h := newHarness(t, model.Red)
	trial := h.reveal()
	h.at(trial.OnsetAt + 280*ms)
	h.key('g')

	got := h.e.trials[0]
	require.False(t, got.Correct)
	require.Equal(t, "G", got.WrongKey)
	require.False(t, got.Missed)
	require.Equal(t, 280.0, *got.ReactionTimeMs)
}

func TestMissedScenario(t *testing.T) {
	h := newHarness(t, model.Red)
	trial := h.reveal()
	h.at(trial.OnsetAt + model.MaxResponse - ms)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())

	h.at(trial.OnsetAt + 5001*ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Len(t, h.e.trials, 1)
	got := h.e.trials[0]
	require.True(t, got.Missed)
	require.Nil(t, got.RespondedAt)
	require.Nil(t, got.ReactionTimeMs)
	require.False(t, got.Correct)
}

func TestFirstResponseOnlyIsScored(t *testing.T) {
	h := newHarness(t, model.Yellow, model.Green)
	trial := h.reveal()
	h.at(trial.OnsetAt + 300*ms)
	h.key('y')
	h.at(trial.OnsetAt + 600*ms)
	h.key('r')

	require.Len(t, h.e.trials, 1)
	got := h.e.trials[0]
	require.True(t, got.Correct)
	require.Equal(t, 300.0, *got.ReactionTimeMs)
}

func TestPrematureFlagsOnlyNextTrial(t *testing.T) {
	h := newHarness(t, model.Red, model.Yellow, model.Green)
	h.at(50 * ms)
	h.key('G')
	h.at(100 * ms)

	first := h.reveal()
	require.True(t, first.Premature)
	h.at(first.OnsetAt + 400*ms)
	h.key('r')

	second := h.reveal()
	require.False(t, second.Premature)
	h.at(second.OnsetAt + 400*ms)
	h.key('y')

	require.Len(t, h.e.trials, 2)
	require.True(t, h.e.trials[0].Premature)
	require.True(t, h.e.trials[0].Correct)
	require.False(t, h.e.trials[1].Premature)
}

func TestNonAlphabetKeyInGatedWaitIsNotPremature(t *testing.T) {
	h := newHarness(t, model.Red)
	h.at(50 * ms)
	h.key('q')
	h.at(300 * ms)
	first := h.reveal()
	require.False(t, first.Premature)
}

func TestDebounceIgnoresSecondKeyInWindow(t *testing.T) {
	h := newHarness(t, model.Yellow)
	trial := h.reveal()
	h.at(trial.OnsetAt + 250*ms)
	h.key('5')
	h.at(trial.OnsetAt + 300*ms)
	h.key('y')

	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	require.Nil(t, h.e.active.RespondedAt)

	h.at(trial.OnsetAt + 350*ms)
	h.key('y')
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Equal(t, 350.0, *h.e.trials[0].ReactionTimeMs)
}

func TestDebounceBlocksPrematureRegistration(t *testing.T) {
	h := newHarness(t, model.Red)
	h.at(10 * ms)
	h.key('x')
	h.at(60 * ms)
	h.key('G')
	h.at(400 * ms)

	first := h.reveal()
	require.False(t, first.Premature)
}

func TestDebounceIsGlobalAcrossTrials(t *testing.T) {
	h := newHarness(t, model.Red, model.Green)
	first := h.reveal()
	h.at(first.OnsetAt + 300*ms)
	h.key('r')
	respondedAt := h.clk.Now()

	h.at(respondedAt + 50*ms)
	h.key('g')
	require.False(t, h.e.prematurePending)

	h.at(respondedAt + 100*ms)
	h.key('g')
	require.True(t, h.e.prematurePending)
}

func TestStaleDeadlineIsNoOp(t *testing.T) {
	h := newHarness(t, model.Red, model.Green)
	first := h.reveal()
	h.at(first.OnsetAt + 300*ms)
	h.key('r')

	second := h.reveal()
	h.e.onResponseDeadline(first.Seq)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	require.Equal(t, second.Seq, h.e.active.Seq)
	require.False(t, h.e.active.Missed)
	require.Len(t, h.e.trials, 1)
}

func TestFocusLossDropsInputAndReleasesGate(t *testing.T) {
	h := newHarness(t, model.Red)
	h.gateDown()
	h.at(100 * ms)
	h.e.SetFocused(false)
	h.at(400 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())

	h.key('G')
	h.gateDown()
	h.at(800 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.False(t, h.e.prematurePending)

	h.e.SetFocused(true)
	first := h.reveal()
	require.False(t, first.Premature)
}

func TestTickUpdatesRemaining(t *testing.T) {
	h := newHarness(t)
	h.at(time.Second)
	require.Equal(t, model.SessionDuration-992*ms, h.e.Remaining())
	require.Equal(t, h.e.Remaining(), h.e.View().Remaining)
}

func TestSessionEndsAtDeadlineInGatedWait(t *testing.T) {
	h := newHarness(t, model.Red)
	first := h.reveal()
	h.at(first.OnsetAt + 400*ms)
	h.key('r')

	h.at(model.SessionDuration - ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	h.at(model.SessionDuration)
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Equal(t, time.Duration(0), h.e.Remaining())
	require.Zero(t, h.clk.Pending())

	require.Len(t, h.sessions, 1)
	s := h.sessions[0]
	require.Equal(t, "test-session", s.ID)
	require.Equal(t, time.Minute, s.EndedAt.Sub(s.StartedAt))
	require.Equal(t, 1, s.Stats.TotalTrials)
	require.Equal(t, 1, s.Stats.Correct)

	v := h.e.View()
	require.NotNil(t, v.Stats)
	require.Equal(t, 1, v.Stats.Correct)
}

func TestSessionEndDeferredForInFlightTrial(t *testing.T) {
	h := newHarness(t, model.Yellow, model.Red)
	h.at(59_700 * ms)
	h.gateDown()
	h.at(59_900 * ms)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())

	h.at(model.SessionDuration)
	require.Equal(t, model.PhaseStimulusOn, h.e.Phase())
	require.Empty(t, h.sessions)

	h.at(64_900 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.True(t, h.e.trials[0].Missed)

	h.at(65_000 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Len(t, h.e.trials, 1)

	h.at(model.SessionDuration + model.MaxResponse + model.EndGrace)
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Len(t, h.sessions, 1)
	require.Equal(t, 1, h.sessions[0].Stats.Missed)
	require.Zero(t, h.clk.Pending())
}

func TestInFlightTrialAnsweredDuringGrace(t *testing.T) {
	h := newHarness(t, model.Green)
	h.at(59_700 * ms)
	trial := h.reveal()
	h.at(60_300 * ms)
	h.key('g')

	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Equal(t, 400.0, *h.e.trials[0].ReactionTimeMs)
	require.Equal(t, 59_900*ms, trial.OnsetAt)

	h.gateDown()
	h.at(61_000 * ms)
	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Len(t, h.e.trials, 1)
}

func TestNoRevealOnceDeadlinePassed(t *testing.T) {
	h := newHarness(t, model.Red)
	h.at(59_900 * ms)
	h.gateDown()
	h.at(70 * time.Second)
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Empty(t, h.sessions[0].Trials)
}

func TestNoRevealWhenHoldCompletesAtDeadline(t *testing.T) {
	h := newHarness(t, model.Red)
	h.at(59_800 * ms)
	h.gateDown()
	h.at(model.SessionDuration)
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Len(t, h.sessions, 1)
	require.Empty(t, h.sessions[0].Trials)
}

func TestGateCallbackAtDeadlineDoesNotReveal(t *testing.T) {
	h := newHarness(t, model.Red)
	h.e.endTimer.disarm()
	h.e.tick.disarm()
	h.at(59_800 * ms)
	h.gateDown()
	h.at(model.SessionDuration)

	require.Equal(t, model.PhaseGatedWait, h.e.Phase())
	require.Nil(t, h.e.active)
	require.Empty(t, h.e.trials)
}

func TestFinishIsIdempotentAndCancelsTimers(t *testing.T) {
	h := newHarness(t, model.Red)
	h.reveal()
	h.e.Finish()
	h.e.Finish()
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Len(t, h.sessions, 1)
	require.True(t, h.sessions[0].Trials[0].Missed)
	require.False(t, h.e.tick.armed())
	require.False(t, h.e.endTimer.armed())
	require.False(t, h.e.responseTimer.armed())
	require.Zero(t, h.clk.Pending())

	h.key('r')
	h.at(2 * time.Minute)
	require.Len(t, h.sessions, 1)
	require.Len(t, h.sessions[0].Trials, 1)
}

func TestAbortProducesNoSession(t *testing.T) {
	h := newHarness(t, model.Red)
	h.reveal()
	h.e.Abort()
	require.Equal(t, model.PhaseFinished, h.e.Phase())
	require.Zero(t, h.clk.Pending())
	_, ok := h.e.Session()
	require.False(t, ok)
	require.Empty(t, h.sessions)
}

func TestKeysIgnoredBeforeStart(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	e := New(clk)
	e.Handle(input.Event{Kind: input.CandidateKey, Key: 'r', At: 0})
	e.Handle(input.Event{Kind: input.GateDown, At: 0})
	clk.Advance(time.Second)
	require.Equal(t, model.PhaseIdle, e.Phase())
	require.Zero(t, clk.Pending())
}

func TestSnapshotIsDetached(t *testing.T) {
	h := newHarness(t, model.Red, model.Green)
	first := h.reveal()
	h.at(first.OnsetAt + 300*ms)
	h.key('r')

	v := h.e.View()
	v.Trials[0].Correct = false
	require.True(t, h.e.trials[0].Correct)
}
