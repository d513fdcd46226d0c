package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/reacto/internal/model"
)

const (
	sparkChars = " .:-=+*#%@"
	barChar    = "█"
	noValue    = "-"
)

// FormatMs renders an optional millisecond value with one decimal.
func FormatMs(v *float64) string {
	if v == nil {
		return noValue
	}
	return fmt.Sprintf("%.1f", *v)
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints the headline numbers of a session.
func RenderSummary(w io.Writer, s model.Stats) error {
	lines := []string{
		"Summary",
		fmt.Sprintf("Trials: %d", s.TotalTrials),
		fmt.Sprintf("Correct: %d (%.1f%%)", s.Correct, s.Accuracy),
		fmt.Sprintf("Wrong key: %d", s.WrongKey),
		fmt.Sprintf("Missed: %d", s.Missed),
		fmt.Sprintf("Premature: %d", s.Premature),
		fmt.Sprintf("Mean RT (ms): %s", FormatMs(s.MeanMs)),
		fmt.Sprintf("Median RT (ms): %s", FormatMs(s.MedianMs)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCategoryTable prints per-category aggregates in alphabet order.
func RenderCategoryTable(w io.Writer, s model.Stats) error {
	headers := []string{"Color", "Attempts", "Correct", "Accuracy", "Mean", "Median", "Min", "Max"}
	rows := make([][]string, 0, len(s.PerCategory))
	for _, cs := range s.PerCategory {
		rows = append(rows, []string{
			cs.Category.Name(),
			fmt.Sprintf("%d", cs.Attempts),
			fmt.Sprintf("%d", cs.Correct),
			fmt.Sprintf("%.1f%%", cs.Accuracy),
			FormatMs(cs.MeanMs),
			FormatMs(cs.MedianMs),
			FormatMs(cs.MinMs),
			FormatMs(cs.MaxMs),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// HistogramLines renders one bar per bin, scaled so the fullest bin spans width cells.
func HistogramLines(h model.Histogram, width int) []string {
	if width < 1 {
		width = 1
	}
	maxCount := h.MaxCount
	if maxCount < 1 {
		maxCount = 1
	}
	labels := make([]string, len(h.Counts))
	for i := range h.Counts {
		lo, hi := 0.0, 0.0
		if i+1 < len(h.Edges) {
			lo, hi = h.Edges[i], h.Edges[i+1]
		}
		labels[i] = fmt.Sprintf("%.0f-%.0f", lo, hi)
	}
	labelWidth := 0
	for _, l := range labels {
		if w := displayWidth(l); w > labelWidth {
			labelWidth = w
		}
	}
	lines := make([]string, 0, len(h.Counts))
	for i, count := range h.Counts {
		bar := int(math.Round(float64(count) / float64(maxCount) * float64(width)))
		if count > 0 && bar == 0 {
			bar = 1
		}
		lines = append(lines, fmt.Sprintf("%s │%s %d", padCell(labels[i], labelWidth, true), strings.Repeat(barChar, bar), count))
	}
	return lines
}

// RenderHistogram prints the latency histogram of correct responses.
func RenderHistogram(w io.Writer, h model.Histogram, width int) error {
	if _, err := fmt.Fprintln(w, "Reaction time (ms)"); err != nil {
		return err
	}
	for _, line := range HistogramLines(h, width) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderHistory prints the stored sessions, most recent first, with a trend
// line of mean reaction time from oldest to newest.
func RenderHistory(w io.Writer, summaries []model.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	headers := []string{"#", "Ended", "Trials", "Accuracy", "Mean", "Median", "Wrong", "Missed", "Premature"}
	rows := make([][]string, 0, len(summaries))
	for i, s := range summaries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.Stats.TotalTrials),
			fmt.Sprintf("%.1f%%", s.Stats.Accuracy),
			FormatMs(s.Stats.MeanMs),
			FormatMs(s.Stats.MedianMs),
			fmt.Sprintf("%d", s.Stats.WrongKey),
			fmt.Sprintf("%d", s.Stats.Missed),
			fmt.Sprintf("%d", s.Stats.Premature),
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if trend := MeanTrend(summaries); len(trend) > 1 {
		if _, err := fmt.Fprintf(w, "Mean RT trend: [%s]\n", Sparkline(trend)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// MeanTrend returns mean reaction times oldest first, skipping sessions without one.
func MeanTrend(summaries []model.Summary) []float64 {
	out := make([]float64, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		if m := summaries[i].Stats.MeanMs; m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// BestMean returns the lowest mean reaction time across summaries.
func BestMean(summaries []model.Summary) *float64 {
	var best *float64
	for _, s := range summaries {
		m := s.Stats.MeanMs
		if m == nil {
			continue
		}
		if best == nil || *m < *best {
			v := *m
			best = &v
		}
	}
	return best
}

// RenderTrials prints the trial log in sequence order.
func RenderTrials(w io.Writer, trials []model.Trial) error {
	headers := []string{"#", "Color", "Onset (ms)", "RT (ms)", "Outcome", "Key", "Premature"}
	rows := make([][]string, 0, len(trials))
	for _, t := range trials {
		premature := ""
		if t.Premature {
			premature = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", t.Seq),
			t.Category.Name(),
			fmt.Sprintf("%d", t.OnsetAt.Milliseconds()),
			FormatMs(t.ReactionTimeMs),
			t.Outcome(),
			t.WrongKey,
			premature,
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
