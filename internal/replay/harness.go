package replay

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/clock"
	"github.com/verte-zerg/reacto/internal/engine"
	"github.com/verte-zerg/reacto/internal/input"
	"github.com/verte-zerg/reacto/internal/model"
)

// SessionID is the ID given to replayed sessions.
const SessionID = "replay"

var origin = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is the finalized session of a replay.
type Result struct {
	Session model.Session
}

// DefaultUntil is the virtual time a replay runs to when the script sets none:
// long enough for a trial revealed just before the session end to resolve.
func DefaultUntil() time.Duration {
	return model.SessionDuration + model.MaxResponse + model.EndGrace
}

// Run replays the script's events on a virtual clock starting at 0 and
// returns the finalized session. A session still running at the end of the
// replay is finished forcibly.
func Run(s *Script, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizer, err := input.NewNormalizer(s.GateKey)
	if err != nil {
		return Result{}, err
	}
	clk := clock.NewManual(origin)
	eng := engine.New(clk,
		engine.WithLogger(logger),
		engine.WithSource(engine.NewScript(s.Stimuli, s.Seed)),
		engine.WithIDGenerator(func() string { return SessionID }),
	)
	if err := eng.Start(); err != nil {
		return Result{}, err
	}

	events := append([]ScriptEvent(nil), s.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	for _, ev := range events {
		at := time.Duration(ev.At) * time.Millisecond
		clk.AdvanceTo(at)
		switch {
		case ev.Focus != nil:
			eng.SetFocused(*ev.Focus)
		case ev.Gate != "":
			kind := input.GateDown
			if ev.Gate == "up" {
				kind = input.GateUp
			}
			eng.Handle(input.Event{Kind: kind, At: at})
		default:
			norm, ok := normalizer.Normalize(input.Raw{Key: ev.Key, Down: true, At: at})
			if ok {
				eng.Handle(norm)
			}
		}
	}

	until := DefaultUntil()
	if s.Until != nil {
		until = time.Duration(*s.Until) * time.Millisecond
	}
	clk.AdvanceTo(until)
	eng.Finish()

	session, ok := eng.Session()
	if !ok {
		return Result{}, fmt.Errorf("replay produced no session")
	}
	logger.Debug("replay finished", zap.Int("trials", len(session.Trials)))
	return Result{Session: session}, nil
}

// Check compares a result with the script's expectations and returns one
// message per mismatch.
func Check(s *Script, r Result) []string {
	if s.Expect == nil {
		return nil
	}
	var out []string
	trials := r.Session.Trials
	if len(s.Expect.Trials) > 0 && len(s.Expect.Trials) != len(trials) {
		out = append(out, fmt.Sprintf("trials: expected %d, got %d", len(s.Expect.Trials), len(trials)))
	}
	for i, te := range s.Expect.Trials {
		if i >= len(trials) {
			break
		}
		t := trials[i]
		prefix := fmt.Sprintf("trial %d", t.Seq)
		if te.Category != nil && *te.Category != t.Category {
			out = append(out, fmt.Sprintf("%s: category expected %s, got %s", prefix, te.Category, t.Category))
		}
		if te.Outcome != "" && !strings.EqualFold(te.Outcome, t.Outcome()) {
			out = append(out, fmt.Sprintf("%s: outcome expected %s, got %s", prefix, strings.ToLower(te.Outcome), t.Outcome()))
		}
		if te.RTMs != nil {
			switch {
			case t.ReactionTimeMs == nil:
				out = append(out, fmt.Sprintf("%s: rt expected %.1f, got none", prefix, *te.RTMs))
			case !closeTo(*te.RTMs, *t.ReactionTimeMs):
				out = append(out, fmt.Sprintf("%s: rt expected %.1f, got %.1f", prefix, *te.RTMs, *t.ReactionTimeMs))
			}
		}
		if te.Premature != nil && *te.Premature != t.Premature {
			out = append(out, fmt.Sprintf("%s: premature expected %t, got %t", prefix, *te.Premature, t.Premature))
		}
		if te.Onset != nil && time.Duration(*te.Onset)*time.Millisecond != t.OnsetAt {
			out = append(out, fmt.Sprintf("%s: onset expected %dms, got %dms", prefix, *te.Onset, t.OnsetAt.Milliseconds()))
		}
	}
	if se := s.Expect.Stats; se != nil {
		st := r.Session.Stats
		out = append(out, checkInt("total", se.Total, st.TotalTrials)...)
		out = append(out, checkInt("correct", se.Correct, st.Correct)...)
		out = append(out, checkInt("wrong-key", se.WrongKey, st.WrongKey)...)
		out = append(out, checkInt("missed", se.Missed, st.Missed)...)
		out = append(out, checkInt("premature", se.Premature, st.Premature)...)
		out = append(out, checkFloat("accuracy", se.Accuracy, &st.Accuracy)...)
		out = append(out, checkFloat("mean", se.MeanMs, st.MeanMs)...)
		out = append(out, checkFloat("median", se.MedianMs, st.MedianMs)...)
	}
	return out
}

func checkInt(name string, want *int, got int) []string {
	if want == nil || *want == got {
		return nil
	}
	return []string{fmt.Sprintf("stats %s: expected %d, got %d", name, *want, got)}
}

func checkFloat(name string, want, got *float64) []string {
	if want == nil {
		return nil
	}
	if got == nil {
		return []string{fmt.Sprintf("stats %s: expected %.1f, got none", name, *want)}
	}
	if !closeTo(*want, *got) {
		return []string{fmt.Sprintf("stats %s: expected %.1f, got %.1f", name, *want, *got)}
	}
	return nil
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 0.05
}
