package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/engine"
	"github.com/verte-zerg/reacto/internal/model"
	statsPkg "github.com/verte-zerg/reacto/internal/stats"
)

const (
	cardWidth  = 13
	cardHeight = 5
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle    = lipgloss.NewStyle().Width(cardWidth).Height(cardHeight).Align(lipgloss.Center, lipgloss.Center).Bold(true)
	idleCard     = cardStyle.Copy().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Foreground(lipgloss.Color("#8C8C8C"))
	heldCard     = cardStyle.Copy().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#C89A3A")).Foreground(lipgloss.Color("#C89A3A"))
	categoryFill = map[model.Category]lipgloss.Color{
		model.Red:    lipgloss.Color("#E5484D"),
		model.Yellow: lipgloss.Color("#F5D90A"),
		model.Green:  lipgloss.Color("#30A46C"),
	}
)

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.engine.Phase() {
	case model.PhaseIdle:
		content = m.renderReady()
	case model.PhaseFinished:
		content = m.renderFinished()
	default:
		content = m.renderRunning()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderReady() string {
	gate := m.keys.Gate.Help().Key
	lines := []string{
		titleStyle.Render("RYG reaction test"),
		"",
		fmt.Sprintf("Hold %s to arm each trial. When a color appears,", gate),
		"press its letter: r (red), y (yellow), g (green).",
		fmt.Sprintf("The session lasts %d seconds.", int(model.SessionDuration/time.Second)),
		"",
		m.help.ShortHelpView([]key.Binding{m.keys.Start, m.keys.Quit}),
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) renderRunning() string {
	v := m.engine.View()
	percent := float64(v.Remaining) / float64(model.SessionDuration)
	status := fmt.Sprintf("%4.1fs  trials %d", v.Remaining.Seconds(), len(v.Trials))
	lines := []string{
		m.progress.ViewAs(percent),
		mutedStyle.Render(status),
		"",
		renderCard(v, m.keys.Gate.Help().Key),
		"",
	}
	if !m.engine.Focused() {
		lines = append(lines, warnStyle.Render("window unfocused: input paused"))
	} else {
		lines = append(lines, mutedStyle.Render(lastOutcome(v.Trials)))
	}
	lines = append(lines, "", m.help.ShortHelpView([]key.Binding{m.keys.Gate, m.keys.Abort}))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func renderCard(v engine.View, gate string) string {
	if v.HasStimulus {
		fill, ok := categoryFill[v.Stimulus]
		if !ok {
			fill = lipgloss.Color("#8C8C8C")
		}
		return cardStyle.Copy().Background(fill).Foreground(lipgloss.Color("#111111")).Render(v.Stimulus.String())
	}
	if v.Phase == model.PhaseGatedWait && v.GateDown {
		return heldCard.Render("hold")
	}
	return idleCard.Render(gate)
}

func lastOutcome(trials []model.Trial) string {
	if len(trials) == 0 {
		return ""
	}
	t := trials[len(trials)-1]
	var out string
	switch {
	case t.Correct:
		out = fmt.Sprintf("%s correct in %s ms", t.Category.Name(), statsPkg.FormatMs(t.ReactionTimeMs))
	case t.WrongKey != "":
		out = fmt.Sprintf("%s answered %s", t.Category.Name(), t.WrongKey)
	default:
		out = fmt.Sprintf("%s missed", t.Category.Name())
	}
	if t.Premature {
		out += " (premature)"
	}
	return out
}

func (m *Model) renderFinished() string {
	v := m.engine.View()
	var b strings.Builder
	if v.Stats != nil {
		if err := statsPkg.RenderSummary(&b, *v.Stats); err != nil {
			m.logger.Error("failed to render summary", zap.Error(err))
		}
		if err := statsPkg.RenderCategoryTable(&b, *v.Stats); err != nil {
			m.logger.Error("failed to render categories", zap.Error(err))
		}
		if err := statsPkg.RenderHistogram(&b, v.Stats.Histogram, m.histogramWidth()); err != nil {
			m.logger.Error("failed to render histogram", zap.Error(err))
		}
	}
	if m.saveErr != nil {
		b.WriteString(warnStyle.Render("session not saved"))
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Start, m.keys.Quit}))
	return lipgloss.NewStyle().Align(lipgloss.Left).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) histogramWidth() int {
	if m.width == 0 {
		return 30
	}
	return clampWidth(m.width/3, 10, 40)
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if len(m.summaries) > 0 {
		last := m.summaries[0].Stats
		segments = append(segments, fmt.Sprintf("Last %s ms · %.1f%%", statsPkg.FormatMs(last.MeanMs), last.Accuracy))
	}
	if best := statsPkg.BestMean(m.summaries); best != nil {
		segments = append(segments, fmt.Sprintf("Best %s ms", statsPkg.FormatMs(best)))
	}
	if len(segments) == 0 {
		return ""
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
