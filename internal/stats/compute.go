// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/verte-zerg/reacto/internal/model"
)

type categoryAcc struct {
	attempts int
	correct  int
	samples  []float64
}

// Compute reduces a trial log to aggregate and per-category statistics.
// It never mutates trials and keeps no state between calls.
func Compute(trials []model.Trial) model.Stats {
	out := model.Stats{
		TotalTrials:     len(trials),
		CompletedTrials: len(trials),
		Samples:         []float64{},
	}
	perCat := make(map[model.Category]*categoryAcc, len(model.Categories))
	for _, c := range model.Categories {
		perCat[c] = &categoryAcc{samples: []float64{}}
	}

	for _, t := range trials {
		acc, ok := perCat[t.Category]
		if !ok {
			acc = &categoryAcc{samples: []float64{}}
			perCat[t.Category] = acc
		}
		acc.attempts++
		if t.Premature {
			out.Premature++
		}
		switch {
		case t.Missed:
			out.Missed++
		case t.Responded():
			if t.Correct {
				acc.correct++
				out.Correct++
				rt := reactionMs(t)
				acc.samples = append(acc.samples, rt)
				out.Samples = append(out.Samples, rt)
			} else {
				out.WrongKey++
			}
		default:
			out.Missed++
		}
	}

	out.Accuracy = Percent(out.Correct, out.TotalTrials)
	out.MeanMs = Mean(out.Samples)
	out.MedianMs = Median(out.Samples)
	out.Histogram = NewHistogram(out.Samples, model.HistogramBins, float64(model.MaxResponse/time.Millisecond))

	for _, c := range model.Categories {
		acc := perCat[c]
		out.PerCategory = append(out.PerCategory, model.CategoryStats{
			Category: c,
			Attempts: acc.attempts,
			Correct:  acc.correct,
			Accuracy: Percent(acc.correct, acc.attempts),
			MeanMs:   Mean(acc.samples),
			MedianMs: Median(acc.samples),
			MinMs:    minOf(acc.samples),
			MaxMs:    maxOf(acc.samples),
			Samples:  acc.samples,
		})
	}
	return out
}

// Percent returns 100*part/whole rounded to one decimal, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return Round1(100 * float64(part) / float64(whole))
}

// Mean returns the arithmetic mean rounded to one decimal, or nil for an empty sample.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := Round1(sum / float64(len(values)))
	return &mean
}

// Median returns the order-statistic median rounded to one decimal, or nil for
// an empty sample. Even-sized samples average the two middle values.
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	median = Round1(median)
	return &median
}

// NewHistogram bins values into n equal-width bins over [0, upper]. Values at
// or beyond upper land in the last bin, negative values in the first.
func NewHistogram(values []float64, n int, upper float64) model.Histogram {
	if n <= 0 {
		n = 1
	}
	width := upper / float64(n)
	h := model.Histogram{
		Edges:    make([]float64, n+1),
		Counts:   make([]int, n),
		MaxCount: 1,
	}
	for i := range h.Edges {
		h.Edges[i] = width * float64(i)
	}
	for _, v := range values {
		idx := BinIndex(v, n, width)
		h.Counts[idx]++
		if h.Counts[idx] > h.MaxCount {
			h.MaxCount = h.Counts[idx]
		}
	}
	return h
}

// BinIndex returns the histogram bin of v, clamped to [0, n-1].
func BinIndex(v float64, n int, width float64) int {
	if width <= 0 || v <= 0 {
		return 0
	}
	idx := int(math.Floor(v / width))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func reactionMs(t model.Trial) float64 {
	if t.ReactionTimeMs != nil {
		return *t.ReactionTimeMs
	}
	return float64(*t.RespondedAt-t.OnsetAt) / float64(time.Millisecond)
}

func minOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	m = Round1(m)
	return &m
}

func maxOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	m = Round1(m)
	return &m
}

// CategoryHistogram bins the correct-response samples of one category over
// the same range as the session histogram.
func CategoryHistogram(cs model.CategoryStats) model.Histogram {
	return NewHistogram(cs.Samples, model.HistogramBins, float64(model.MaxResponse/time.Millisecond))
}
