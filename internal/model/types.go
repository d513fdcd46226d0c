// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// Category is one stimulus of the RYG alphabet.
type Category rune

// Stimulus alphabet.
const (
	Red    Category = 'R'
	Yellow Category = 'Y'
	Green  Category = 'G'
)

// Categories lists the stimulus alphabet in display order.
var Categories = []Category{Red, Yellow, Green}

// String returns the single-letter key of the category.
func (c Category) String() string {
	return string(rune(c))
}

// Name returns the color name of the category.
func (c Category) Name() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	runes := []rune(string(text))
	if len(runes) != 1 {
		return fmt.Errorf("invalid category %q", text)
	}
	parsed, ok := ParseCategory(runes[0])
	if !ok {
		return fmt.Errorf("invalid category %q", text)
	}
	*c = parsed
	return nil
}

// ParseCategory maps a response letter to a category, case-insensitively.
func ParseCategory(r rune) (Category, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	for _, c := range Categories {
		if rune(c) == r {
			return c, true
		}
	}
	return 0, false
}

// Phase is a state of the trial sequencer.
type Phase int

// Sequencer phases.
const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseGatedWait
	PhaseStimulusOn
	PhaseFinished
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseGatedWait:
		return "gated-wait"
	case PhaseStimulusOn:
		return "stimulus-on"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Trial is one attempted stimulus presentation.
type Trial struct {
	Seq            int            `json:"seq"`
	Category       Category       `json:"category"`
	OnsetAt        time.Duration  `json:"onsetAt"`
	RespondedAt    *time.Duration `json:"respondedAt,omitempty"`
	ReactionTimeMs *float64       `json:"reactionTimeMs,omitempty"`
	Correct        bool           `json:"correct"`
	Premature      bool           `json:"premature"`
	WrongKey       string         `json:"wrongKey,omitempty"`
	Missed         bool           `json:"missed"`
}

// Responded reports whether a key was accepted for the trial.
func (t Trial) Responded() bool {
	return t.RespondedAt != nil
}

// Trial outcomes.
const (
	OutcomeCorrect = "correct"
	OutcomeWrong   = "wrong"
	OutcomeMissed  = "missed"
)

// Outcome names the mutually exclusive outcome of the trial.
func (t Trial) Outcome() string {
	switch {
	case t.Correct:
		return OutcomeCorrect
	case t.Missed || !t.Responded():
		return OutcomeMissed
	default:
		return OutcomeWrong
	}
}

// CategoryStats holds per-category aggregates over correct responses.
type CategoryStats struct {
	Category Category  `json:"category"`
	Attempts int       `json:"attempts"`
	Correct  int       `json:"correct"`
	Accuracy float64   `json:"accuracy"`
	MeanMs   *float64  `json:"meanMs,omitempty"`
	MedianMs *float64  `json:"medianMs,omitempty"`
	MinMs    *float64  `json:"minMs,omitempty"`
	MaxMs    *float64  `json:"maxMs,omitempty"`
	Samples  []float64 `json:"samples"`
}

// Histogram is a fixed-bin latency histogram.
type Histogram struct {
	Edges    []float64 `json:"edges"`
	Counts   []int     `json:"counts"`
	MaxCount int       `json:"maxCount"`
}

// Stats is the aggregate derived from a trial log.
type Stats struct {
	TotalTrials     int             `json:"totalTrials"`
	CompletedTrials int             `json:"completedTrials"`
	Correct         int             `json:"correct"`
	Accuracy        float64         `json:"accuracy"`
	Premature       int             `json:"premature"`
	WrongKey        int             `json:"wrongKey"`
	Missed          int             `json:"missed"`
	MeanMs          *float64        `json:"meanMs,omitempty"`
	MedianMs        *float64        `json:"medianMs,omitempty"`
	PerCategory     []CategoryStats `json:"perCategory"`
	Samples         []float64       `json:"samples"`
	Histogram       Histogram       `json:"histogram"`
}

// Category returns the per-category entry for c.
func (s Stats) Category(c Category) (CategoryStats, bool) {
	for _, cs := range s.PerCategory {
		if cs.Category == c {
			return cs, true
		}
	}
	return CategoryStats{}, false
}

// Session is a finalized test session.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Trials    []Trial   `json:"trials"`
	Stats     Stats     `json:"stats"`
}

// Summary is the persisted form of a session.
type Summary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	DurationMs int64     `json:"durationMs"`
	Stats      Stats     `json:"stats"`
}

// Summarize builds the persisted summary of a session.
func (s Session) Summarize() Summary {
	return Summary{
		ID:         s.ID,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		DurationMs: s.EndedAt.Sub(s.StartedAt).Milliseconds(),
		Stats:      s.Stats,
	}
}

// Config defines test settings taken from flags and the config file.
type Config struct {
	GateKey   string
	ReleaseMs int
	Seed      int64
	Save      bool
}
