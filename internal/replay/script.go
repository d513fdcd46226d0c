// Package replay runs recorded key logs through the engine on a virtual clock.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/reacto/internal/model"
)

// Script is the YAML form of a replay.
type Script struct {
	Description string           `yaml:"description"`
	GateKey     string           `yaml:"gate-key"`
	Seed        int64            `yaml:"seed"`
	Stimuli     []model.Category `yaml:"stimuli"`
	Until       *int64           `yaml:"until"`
	Events      []ScriptEvent    `yaml:"events"`
	Expect      *Expectation     `yaml:"expect"`
}

// ScriptEvent is one input at a millisecond offset from session start.
// Exactly one of Gate, Key and Focus is set.
type ScriptEvent struct {
	At    int64  `yaml:"at"`
	Gate  string `yaml:"gate"`
	Key   string `yaml:"key"`
	Focus *bool  `yaml:"focus"`
}

// Expectation lists the outcomes a script asserts. Nil fields are not checked.
type Expectation struct {
	Trials []TrialExpectation `yaml:"trials"`
	Stats  *StatsExpectation  `yaml:"stats"`
}

// TrialExpectation asserts one trial in sequence order.
type TrialExpectation struct {
	Category  *model.Category `yaml:"category"`
	Outcome   string          `yaml:"outcome"`
	RTMs      *float64        `yaml:"rt"`
	Premature *bool           `yaml:"premature"`
	Onset     *int64          `yaml:"onset"`
}

// StatsExpectation asserts aggregate counts and central tendency.
type StatsExpectation struct {
	Total     *int     `yaml:"total"`
	Correct   *int     `yaml:"correct"`
	WrongKey  *int     `yaml:"wrong-key"`
	Missed    *int     `yaml:"missed"`
	Premature *int     `yaml:"premature"`
	Accuracy  *float64 `yaml:"accuracy"`
	MeanMs    *float64 `yaml:"mean"`
	MedianMs  *float64 `yaml:"median"`
}

// LoadScript reads and validates a YAML script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes and validates a YAML script. Unknown keys are rejected.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("script is empty")
		}
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks event shape and expectation vocabulary.
func (s *Script) Validate() error {
	for i, ev := range s.Events {
		if ev.At < 0 {
			return fmt.Errorf("event %d: at must be >= 0", i)
		}
		set := 0
		if ev.Gate != "" {
			set++
			if ev.Gate != "down" && ev.Gate != "up" {
				return fmt.Errorf("event %d: gate must be \"down\" or \"up\", got %q", i, ev.Gate)
			}
		}
		if ev.Key != "" {
			set++
		}
		if ev.Focus != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("event %d: exactly one of gate, key, focus is required", i)
		}
	}
	if s.Until != nil && *s.Until < 0 {
		return fmt.Errorf("until must be >= 0")
	}
	if s.Expect != nil {
		for i, te := range s.Expect.Trials {
			switch strings.ToLower(te.Outcome) {
			case "", model.OutcomeCorrect, model.OutcomeWrong, model.OutcomeMissed:
			default:
				return fmt.Errorf("expected trial %d: unknown outcome %q", i+1, te.Outcome)
			}
		}
	}
	return nil
}
