package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/reacto/internal/model"
)

func correctTrial(seq int, c model.Category, rtMs float64) model.Trial {
	onset := time.Duration(seq) * 10 * time.Second
	responded := onset + time.Duration(rtMs*float64(time.Millisecond))
	rt := rtMs
	return model.Trial{Seq: seq, Category: c, OnsetAt: onset, RespondedAt: &responded, ReactionTimeMs: &rt, Correct: true}
}

func wrongTrial(seq int, c model.Category, key string, rtMs float64) model.Trial {
	t := correctTrial(seq, c, rtMs)
	t.Correct = false
	t.WrongKey = key
	return t
}

func missedTrial(seq int, c model.Category) model.Trial {
	return model.Trial{Seq: seq, Category: c, OnsetAt: time.Duration(seq) * 10 * time.Second, Missed: true}
}

func ptr(v float64) *float64 {
	return &v
}

func TestComputeEmptyLog(t *testing.T) {
	s := Compute(nil)
	require.Equal(t, 0, s.TotalTrials)
	require.Equal(t, 0.0, s.Accuracy)
	require.Nil(t, s.MeanMs)
	require.Nil(t, s.MedianMs)
	require.Len(t, s.PerCategory, len(model.Categories))
	for _, cs := range s.PerCategory {
		require.Equal(t, 0.0, cs.Accuracy)
		require.Nil(t, cs.MeanMs)
		require.Nil(t, cs.MedianMs)
		require.Nil(t, cs.MinMs)
		require.Nil(t, cs.MaxMs)
	}
	require.Equal(t, 1, s.Histogram.MaxCount)
	require.Len(t, s.Histogram.Counts, model.HistogramBins)
	require.Len(t, s.Histogram.Edges, model.HistogramBins+1)
}

func TestComputeCountsAndCentralTendency(t *testing.T) {
	premature := correctTrial(2, model.Yellow, 420)
	premature.Premature = true
	trials := []model.Trial{
		correctTrial(1, model.Red, 300),
		premature,
		wrongTrial(3, model.Green, "R", 250),
		missedTrial(4, model.Red),
		correctTrial(5, model.Red, 350),
		correctTrial(6, model.Green, 500),
	}
	s := Compute(trials)

	require.Equal(t, 6, s.TotalTrials)
	require.Equal(t, 6, s.CompletedTrials)
	require.Equal(t, 4, s.Correct)
	require.Equal(t, 1, s.WrongKey)
	require.Equal(t, 1, s.Missed)
	require.Equal(t, 1, s.Premature)
	require.Equal(t, 66.7, s.Accuracy)
	require.Equal(t, []float64{300, 420, 350, 500}, s.Samples)
	require.Equal(t, ptr(392.5), s.MeanMs)
	require.Equal(t, ptr(385.0), s.MedianMs)

	red, ok := s.Category(model.Red)
	require.True(t, ok)
	require.Equal(t, 3, red.Attempts)
	require.Equal(t, 2, red.Correct)
	require.Equal(t, 66.7, red.Accuracy)
	require.Equal(t, ptr(325.0), red.MeanMs)
	require.Equal(t, ptr(325.0), red.MedianMs)
	require.Equal(t, ptr(300.0), red.MinMs)
	require.Equal(t, ptr(350.0), red.MaxMs)

	green, ok := s.Category(model.Green)
	require.True(t, ok)
	require.Equal(t, 2, green.Attempts)
	require.Equal(t, 50.0, green.Accuracy)
	require.Equal(t, []float64{500}, green.Samples)
}

func TestComputeUnrespondedUnmarkedCountsAsMiss(t *testing.T) {
	trials := []model.Trial{{Seq: 1, Category: model.Green}}
	s := Compute(trials)
	require.Equal(t, 1, s.Missed)
	require.Equal(t, 0, s.Correct)
	require.Equal(t, 0, s.WrongKey)
}

func TestComputeUsesStoredReactionTime(t *testing.T) {
	tr := correctTrial(1, model.Yellow, 310)
	stored := 310.0
	tr.ReactionTimeMs = &stored
	later := tr.OnsetAt + 900*time.Millisecond
	tr.RespondedAt = &later
	s := Compute([]model.Trial{tr})
	require.Equal(t, []float64{310}, s.Samples)
}

func TestMedianOddAndEven(t *testing.T) {
	require.Equal(t, ptr(3.0), Median([]float64{5, 1, 3}))
	require.Equal(t, ptr(2.5), Median([]float64{4, 1, 3, 2}))
	require.Nil(t, Median(nil))
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	values := []float64{5, 1, 3}
	Median(values)
	require.Equal(t, []float64{5, 1, 3}, values)
}

func TestMeanRoundsToOneDecimal(t *testing.T) {
	require.Equal(t, ptr(333.3), Mean([]float64{333, 333, 334}))
	require.Equal(t, ptr(1.5), Mean([]float64{1, 2}))
	require.Nil(t, Mean([]float64{}))
}

func TestPercent(t *testing.T) {
	require.Equal(t, 0.0, Percent(0, 0))
	require.Equal(t, 33.3, Percent(1, 3))
	require.Equal(t, 100.0, Percent(5, 5))
}

func TestHistogramBinsAndClamp(t *testing.T) {
	h := NewHistogram([]float64{0, 499.9, 500, 2500, 4999, 5000, 7000, -3}, 10, 5000)
	require.Equal(t, []float64{0, 500, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 5000}, h.Edges)
	require.Equal(t, []int{3, 1, 0, 0, 0, 1, 0, 0, 0, 3}, h.Counts)
	require.Equal(t, 3, h.MaxCount)
}

func TestHistogramMaxCountFloor(t *testing.T) {
	h := NewHistogram(nil, 10, 5000)
	require.Equal(t, 1, h.MaxCount)
	for _, c := range h.Counts {
		require.Zero(t, c)
	}
}

func randomLog(rnd *rand.Rand, n int) []model.Trial {
	trials := make([]model.Trial, 0, n)
	for i := 1; i <= n; i++ {
		c := model.Categories[rnd.Intn(len(model.Categories))]
		var tr model.Trial
		switch rnd.Intn(3) {
		case 0:
			tr = correctTrial(i, c, float64(rnd.Intn(5001)))
		case 1:
			tr = wrongTrial(i, c, "X", float64(rnd.Intn(5001)))
		default:
			tr = missedTrial(i, c)
		}
		tr.Premature = rnd.Intn(4) == 0
		trials = append(trials, tr)
	}
	return trials
}

func TestComputeProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		trials := randomLog(rnd, rnd.Intn(40))
		s := Compute(trials)

		require.Equal(t, s.TotalTrials, s.Correct+s.WrongKey+s.Missed)
		require.Equal(t, s.TotalTrials, s.CompletedTrials)

		total := 0
		for _, c := range s.Histogram.Counts {
			total += c
		}
		require.Equal(t, len(s.Samples), total)

		for _, cs := range s.PerCategory {
			if len(cs.Samples) == 0 {
				require.Nil(t, cs.MeanMs)
				continue
			}
			require.LessOrEqual(t, *cs.MinMs, *cs.MedianMs)
			require.LessOrEqual(t, *cs.MedianMs, *cs.MaxMs)
			require.LessOrEqual(t, *cs.MinMs, *cs.MeanMs)
			require.LessOrEqual(t, *cs.MeanMs, *cs.MaxMs)
		}
		for _, v := range s.Samples {
			idx := BinIndex(v, model.HistogramBins, 500)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, model.HistogramBins)
		}
	}
}

func TestComputeIsIdempotentAndPure(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	trials := randomLog(rnd, 30)
	before := append([]model.Trial(nil), trials...)

	first := Compute(trials)
	second := Compute(trials)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("compute not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, trials); diff != "" {
		t.Fatalf("compute mutated input (-before +after):\n%s", diff)
	}
}

func TestCategoryHistogramSharesSessionRange(t *testing.T) {
	s := Compute([]model.Trial{
		correctTrial(1, model.Red, 320),
		correctTrial(2, model.Red, 780),
		correctTrial(3, model.Green, 4999),
	})
	red, ok := s.Category(model.Red)
	require.True(t, ok)
	h := CategoryHistogram(red)
	require.Equal(t, s.Histogram.Edges, h.Edges)
	require.Equal(t, 2, h.Counts[0]+h.Counts[1])
	require.Zero(t, h.Counts[model.HistogramBins-1])
}
