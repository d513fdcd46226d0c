package engine

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/reacto/internal/model"
)

// Source supplies the category of each revealed stimulus.
type Source interface {
	Next() model.Category
	Reset()
}

// Picker selects stimulus categories without immediate repeats.
type Picker struct {
	rnd      *rand.Rand
	alphabet []model.Category
	prev     model.Category
	hasPrev  bool
}

// NewPicker returns a Picker over the RYG alphabet. A zero seed uses the current time.
func NewPicker(seed int64) *Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Picker{
		rnd:      rand.New(rand.NewSource(seed)),
		alphabet: append([]model.Category(nil), model.Categories...),
	}
}

// Next picks uniformly among the categories other than the previous pick.
func (p *Picker) Next() model.Category {
	var c model.Category
	if p.hasPrev {
		c = p.NextAfter(p.prev)
	} else {
		c = p.alphabet[p.rnd.Intn(len(p.alphabet))]
	}
	p.prev = c
	p.hasPrev = true
	return c
}

// NextAfter picks uniformly among the categories other than prev without
// recording the result.
func (p *Picker) NextAfter(prev model.Category) model.Category {
	candidates := make([]model.Category, 0, len(p.alphabet))
	for _, c := range p.alphabet {
		if c != prev {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return prev
	}
	return candidates[p.rnd.Intn(len(candidates))]
}

// Reset forgets the previous pick so the next one has no exclusion.
func (p *Picker) Reset() {
	p.hasPrev = false
}

// Script replays a fixed category sequence, then defers to a Picker that
// excludes the last scripted category.
type Script struct {
	categories []model.Category
	pos        int
	fallback   *Picker
}

// NewScript returns a Script over categories with a fallback seeded by seed.
func NewScript(categories []model.Category, seed int64) *Script {
	return &Script{
		categories: append([]model.Category(nil), categories...),
		fallback:   NewPicker(seed),
	}
}

// Next implements Source.
func (s *Script) Next() model.Category {
	if s.pos < len(s.categories) {
		c := s.categories[s.pos]
		s.pos++
		s.fallback.prev = c
		s.fallback.hasPrev = true
		return c
	}
	return s.fallback.Next()
}

// Reset implements Source by rewinding the script.
func (s *Script) Reset() {
	s.pos = 0
	s.fallback.Reset()
}
