// Package tui provides the Bubble Tea reaction test interface.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/clock"
	"github.com/verte-zerg/reacto/internal/engine"
	"github.com/verte-zerg/reacto/internal/input"
	"github.com/verte-zerg/reacto/internal/model"
)

// Scheduler is a clock.Scheduler whose due callbacks are delivered on Tasks.
// clock.Loop implements it.
type Scheduler interface {
	clock.Scheduler
	Tasks() <-chan func()
	Done() <-chan struct{}
}

// History persists finished sessions.
type History interface {
	History(ctx context.Context) []model.Summary
	SaveSession(ctx context.Context, session model.Session) error
}

type taskMsg func()

type keyMap struct {
	Start key.Binding
	Gate  key.Binding
	Abort key.Binding
	Quit  key.Binding
}

func newKeyMap(gateKey rune) keyMap {
	gateName := string(gateKey)
	if gateKey == ' ' {
		gateName = "space"
	}
	return keyMap{
		Start: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
		Gate:  key.NewBinding(key.WithKeys(gateName), key.WithHelp(gateName, "hold, then r/y/g")),
		Abort: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "abort")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model implements the Bubble Tea test UI.
type Model struct {
	config  model.Config
	sched   Scheduler
	history History
	logger  *zap.Logger

	normalizer input.Normalizer
	detector   *input.ReleaseDetector
	engine     *engine.Engine
	source     engine.Source

	keys     keyMap
	help     help.Model
	progress progress.Model

	width  int
	height int

	summaries []model.Summary
	saveErr   error
	focused   bool
}

// NewModel constructs a test TUI model. history may be nil.
func NewModel(cfg model.Config, sched Scheduler, history History, logger *zap.Logger) (*Model, error) {
	normalizer, err := input.NewNormalizer(cfg.GateKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		config:     cfg,
		sched:      sched,
		history:    history,
		logger:     logger,
		normalizer: normalizer,
		source:     engine.NewPicker(cfg.Seed),
		keys:       newKeyMap(normalizer.GateKey),
		help:       help.New(),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		focused:    true,
	}
	m.detector = input.NewReleaseDetector(sched, time.Duration(cfg.ReleaseMs)*time.Millisecond, m.dispatch)
	m.engine = m.newEngine()
	m.loadHistory()
	return m, nil
}

func (m *Model) newEngine() *engine.Engine {
	return engine.New(m.sched,
		engine.WithLogger(m.logger),
		engine.WithSource(m.source),
		engine.WithFinishHandler(m.onFinish),
	)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitTask()
}

func (m *Model) waitTask() tea.Cmd {
	tasks, done := m.sched.Tasks(), m.sched.Done()
	return func() tea.Msg {
		select {
		case task := <-tasks:
			return taskMsg(task)
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskMsg:
		msg()
		return m, m.waitTask()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = clampWidth(msg.Width/2, 10, 60)
		return m, nil
	case tea.FocusMsg:
		m.focused = true
		m.detector.Reset()
		m.engine.SetFocused(true)
		return m, nil
	case tea.BlurMsg:
		m.focused = false
		m.detector.Reset()
		m.engine.SetFocused(false)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.engine.Abort()
		return m, tea.Quit
	}
	if m.running() {
		if key.Matches(msg, m.keys.Abort) {
			m.abortSession()
			return m, nil
		}
		if !m.focused {
			return m, nil
		}
		m.feed(msg)
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Start):
		m.startSession()
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Abort):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) running() bool {
	switch m.engine.Phase() {
	case model.PhaseIdle, model.PhaseFinished:
		return false
	default:
		return true
	}
}

// feed converts a terminal key press into raw events. Terminals report
// presses and auto-repeats only; releases come from the detector.
func (m *Model) feed(msg tea.KeyMsg) {
	if msg.Paste {
		return
	}
	var names []string
	switch msg.Type {
	case tea.KeySpace:
		names = []string{"space"}
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			names = append(names, string(r))
		}
	default:
		return
	}
	for _, name := range names {
		ev, ok := m.normalizer.Normalize(input.Raw{Key: name, Down: true, At: m.sched.Now()})
		if !ok {
			continue
		}
		m.detector.Observe(ev)
	}
}

func (m *Model) dispatch(ev input.Event) {
	m.engine.Handle(ev)
}

func (m *Model) startSession() {
	if m.engine.Phase() != model.PhaseIdle {
		m.engine = m.newEngine()
	}
	m.detector.Reset()
	m.saveErr = nil
	m.engine.SetFocused(m.focused)
	if err := m.engine.Start(); err != nil {
		m.logger.Error("failed to start session", zap.Error(err))
	}
}

func (m *Model) abortSession() {
	m.detector.Reset()
	m.engine.Abort()
	m.engine = m.newEngine()
}

func (m *Model) onFinish(session model.Session) {
	m.detector.Reset()
	if !m.config.Save || m.history == nil {
		m.prependSummary(session.Summarize())
		return
	}
	if err := m.history.SaveSession(context.Background(), session); err != nil {
		m.saveErr = err
		m.logger.Warn("failed to save session", zap.String("session_id", session.ID), zap.Error(err))
		m.prependSummary(session.Summarize())
		return
	}
	m.loadHistory()
}

func (m *Model) loadHistory() {
	if m.history == nil {
		return
	}
	m.summaries = m.history.History(context.Background())
}

func (m *Model) prependSummary(s model.Summary) {
	summaries := append([]model.Summary{s}, m.summaries...)
	if len(summaries) > model.HistoryDepth {
		summaries = summaries[:model.HistoryDepth]
	}
	m.summaries = summaries
}

func clampWidth(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
