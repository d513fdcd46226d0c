// Package input normalizes raw keyboard events into the closed set of events
// the engine understands.
package input

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind tags a normalized event.
type Kind int

// Event kinds.
const (
	GateDown Kind = iota + 1
	GateUp
	CandidateKey
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case GateDown:
		return "gate-down"
	case GateUp:
		return "gate-up"
	case CandidateKey:
		return "key"
	default:
		return "unknown"
	}
}

// Event is a normalized key event. Key is set only for CandidateKey.
type Event struct {
	Kind Kind
	Key  rune
	At   time.Duration
}

// Raw is a keyboard event as delivered by the environment.
type Raw struct {
	Key  string
	Down bool
	At   time.Duration
}

// Normalizer maps raw events onto Events.
type Normalizer struct {
	GateKey rune
}

// NewNormalizer returns a Normalizer for the named gate key.
func NewNormalizer(gateKey string) (Normalizer, error) {
	r, err := ParseGateKey(gateKey)
	if err != nil {
		return Normalizer{}, err
	}
	return Normalizer{GateKey: r}, nil
}

// Normalize converts a raw event. Named keys (Shift, Enter, ...) and releases
// of non-gate keys produce no event.
func (n Normalizer) Normalize(raw Raw) (Event, bool) {
	r, ok := singleRune(raw.Key)
	if !ok {
		if strings.EqualFold(raw.Key, "space") {
			r, ok = ' ', true
		}
	}
	if !ok {
		return Event{}, false
	}
	if r == n.GateKey {
		if raw.Down {
			return Event{Kind: GateDown, At: raw.At}, true
		}
		return Event{Kind: GateUp, At: raw.At}, true
	}
	if !raw.Down {
		return Event{}, false
	}
	return Event{Kind: CandidateKey, Key: r, At: raw.At}, true
}

// ParseGateKey resolves a gate key name: "space" or a single character.
func ParseGateKey(name string) (rune, error) {
	if name == "" || strings.EqualFold(name, "space") {
		return ' ', nil
	}
	r, ok := singleRune(name)
	if !ok {
		return 0, fmt.Errorf("gate key must be \"space\" or a single character, got %q", name)
	}
	return r, nil
}

func singleRune(s string) (rune, bool) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, r != utf8.RuneError
}
