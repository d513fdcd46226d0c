// Package historyui provides the Bubble Tea history browser.
package historyui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/reacto/internal/model"
	"github.com/verte-zerg/reacto/internal/stats"
)

const (
	tabSessions = iota
	tabDetail
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Source provides stored sessions.
type Source interface {
	History(ctx context.Context) []model.Summary
	Trials(ctx context.Context, sessionID string) ([]model.Trial, error)
}

// Model implements the Bubble Tea history UI.
type Model struct {
	source Source

	summaries []model.Summary
	detail    *model.Stats
	detailID  string
	errMsg    string

	tabs      []string
	activeTab int
	table     table.Model
	detailVP  viewport.Model

	width  int
	height int
}

// NewModel constructs a history UI model.
func NewModel(src Source) *Model {
	m := &Model{
		source:   src,
		tabs:     []string{"Sessions", "Detail"},
		detailVP: viewport.New(0, 0),
	}
	m.table = buildSessionTable(nil, 0, 1)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderDetail()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "enter":
			if m.activeTab == tabSessions {
				m.moveTab(1)
				return m, tea.ClearScreen
			}
			return m, nil
		case "esc":
			if m.activeTab == tabDetail {
				m.moveTab(-1)
				return m, tea.ClearScreen
			}
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabSessions {
			m.table, cmd = m.table.Update(msg)
			m.loadDetail()
			return m, cmd
		}
		m.detailVP, cmd = m.detailVP.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) refresh() {
	m.summaries = m.source.History(context.Background())
	m.table.SetRows(sessionRows(m.summaries))
	if m.table.Cursor() >= len(m.summaries) {
		m.table.SetCursor(0)
	}
	m.detailID = ""
	m.loadDetail()
}

func (m *Model) selected() (model.Summary, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.summaries) {
		return model.Summary{}, false
	}
	return m.summaries[idx], true
}

// loadDetail recomputes the selected session's stats from its stored trial
// log, falling back to the persisted snapshot.
func (m *Model) loadDetail() {
	s, ok := m.selected()
	if !ok {
		m.detail = nil
		m.detailID = ""
		m.renderDetail()
		return
	}
	if s.ID == m.detailID {
		return
	}
	m.detailID = s.ID
	m.errMsg = ""
	snapshot := s.Stats
	m.detail = &snapshot
	trials, err := m.source.Trials(context.Background(), s.ID)
	switch {
	case err != nil:
		m.errMsg = fmt.Sprintf("failed to load trials: %v", err)
	case len(trials) > 0:
		computed := stats.Compute(trials)
		m.detail = &computed
	}
	m.renderDetail()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X"))
	if headerHeight < 1 {
		headerHeight = 1
	}
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.detailVP.Width = m.width
	m.detailVP.Height = bodyHeight
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight-cardsHeight(m.width)-2))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabSessions {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Select: up/down  Detail: enter  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if len(m.summaries) == 0 {
		return fitLines("No sessions found.", m.width, height)
	}
	if m.activeTab == tabDetail {
		return fitLines(m.detailVP.View(), m.width, height)
	}
	cards := renderSummaryCards(m.summaries, m.width)
	view := tableMutedStyle.Render(m.table.View())
	trend := ""
	if values := stats.MeanTrend(m.summaries); len(values) > 1 {
		trend = headerStyle.Render(fmt.Sprintf("Mean RT trend: [%s]", stats.Sparkline(values)))
	}
	return fitLines(strings.Join([]string{cards, view, trend}, "\n"), m.width, height)
}

func (m *Model) renderDetail() {
	m.detailVP.SetContent(renderDetailContent(m.detail, m.selectedLabel(), m.width))
}

func (m *Model) selectedLabel() string {
	s, ok := m.selected()
	if !ok {
		return ""
	}
	return fmt.Sprintf("Session %s  %s", shortID(s.ID), s.EndedAt.Local().Format("2006-01-02 15:04"))
}

func renderDetailContent(s *model.Stats, label string, width int) string {
	if s == nil {
		return "No session selected."
	}
	if width <= 0 {
		width = 80
	}
	barWidth := maxInt(10, minInt(40, width/3))
	var buf bytes.Buffer
	buf.WriteString(headerStyle.Render(label))
	buf.WriteString("\n\n")
	if err := stats.RenderSummary(&buf, *s); err != nil {
		return fmt.Sprintf("Failed to render summary: %v", err)
	}
	if err := stats.RenderCategoryTable(&buf, *s); err != nil {
		return fmt.Sprintf("Failed to render categories: %v", err)
	}
	if err := stats.RenderHistogram(&buf, s.Histogram, barWidth); err != nil {
		return fmt.Sprintf("Failed to render histogram: %v", err)
	}
	for _, cs := range s.PerCategory {
		if len(cs.Samples) == 0 {
			continue
		}
		buf.WriteString(cardTitleStyle.Render(strings.ToUpper(cs.Category.Name()[:1]) + cs.Category.Name()[1:]))
		buf.WriteString("\n")
		for _, line := range stats.HistogramLines(stats.CategoryHistogram(cs), barWidth) {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderSummaryCards(summaries []model.Summary, width int) string {
	var trials, correct int
	for _, s := range summaries {
		trials += s.Stats.TotalTrials
		correct += s.Stats.Correct
	}
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d", len(summaries))),
		metricCard("Best mean", stats.FormatMs(stats.BestMean(summaries))),
		metricCard("Last mean", stats.FormatMs(summaries[0].Stats.MeanMs)),
		metricCard("Accuracy", fmt.Sprintf("%.1f%%", stats.Percent(correct, trials))),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func cardsHeight(width int) int {
	h := lipgloss.Height(metricCard("x", "y"))
	if width < 80 {
		return h * 4
	}
	return h
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 2},
		{Title: "Ended", Width: 16},
		{Title: "Trials", Width: 6},
		{Title: "Accuracy", Width: 8},
		{Title: "Mean", Width: 7},
		{Title: "Median", Width: 7},
		{Title: "Wrong", Width: 5},
		{Title: "Missed", Width: 6},
		{Title: "Premature", Width: 9},
	}
}

func sessionRows(summaries []model.Summary) []table.Row {
	rows := make([]table.Row, 0, len(summaries))
	for i, s := range summaries {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.Stats.TotalTrials),
			fmt.Sprintf("%.1f%%", s.Stats.Accuracy),
			stats.FormatMs(s.Stats.MeanMs),
			stats.FormatMs(s.Stats.MedianMs),
			fmt.Sprintf("%d", s.Stats.WrongKey),
			fmt.Sprintf("%d", s.Stats.Missed),
			fmt.Sprintf("%d", s.Stats.Premature),
		})
	}
	return rows
}

func buildSessionTable(summaries []model.Summary, width, height int) table.Model {
	t := table.New(
		table.WithColumns(sessionColumns()),
		table.WithRows(sessionRows(summaries)),
		table.WithHeight(maxInt(1, height)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(sessionTableStyles())
	return t
}

func sessionTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
