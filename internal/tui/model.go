package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentmail/bus/internal/evidence"
	"github.com/agentmail/bus/internal/metrics"
)

// tickMsg drives the dashboard's frame loop.
type tickMsg time.Time

// tickInterval is the dashboard's nominal frame period.
const tickInterval = 250 * time.Millisecond

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleHiContrast = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("0")).Bold(true)
)

// HealthSource reports the latest health classification, decoupling the
// dashboard model from the metrics registry's construction.
type HealthSource func() (metrics.HealthLevel, metrics.HealthSignals)

// DashboardModel is the bubbletea tea.Model for the operator dashboard's
// main screen. It owns no terminal state directly; rendering decisions
// (incremental/full/deferred) come from the Bayesian Strategy so the
// decision logic stays testable without a tty.
type DashboardModel struct {
	strategy *Strategy
	ledger   *evidence.Ledger
	prefs    Preferences
	prefsSt  *Store
	health   HealthSource

	width, height int
	lastFull      string // cached full render, reused on Incremental/Deferred frames
	errorCount    int
	resizing      bool
	lastResizeAt  time.Time
	lastDecision  Decision
	quitting      bool

	log viewport.Model // scrollable recent-decisions pane
}

// NewDashboardModel builds a dashboard model with a fresh decision
// strategy and the given preferences store / health source.
func NewDashboardModel(ledger *evidence.Ledger, prefsSt *Store, health HealthSource) DashboardModel {
	prefs, err := prefsSt.Load()
	if err != nil {
		prefs = DefaultPreferences()
	}
	vp := viewport.New(40, 6)
	return DashboardModel{
		strategy: NewStrategy(),
		ledger:   ledger,
		prefs:    prefs,
		prefsSt:  prefsSt,
		health:   health,
		log:      vp,
	}
}

// Init starts the frame-tick loop.
func (m DashboardModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles bubbletea messages: frame ticks, key presses, and
// resize events. Resize and key events feed the Bayesian strategy's
// FrameState so the next tick's render decision reflects them.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizing = true
		m.lastResizeAt = time.Now()
		m.log.Width = m.width
		if m.height > 8 {
			m.log.Height = m.height - 8
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.prefsSt != nil {
				_ = m.prefsSt.Flush()
			}
			return m, tea.Quit
		case "c":
			m.prefs.Accessibility.HighContrast = !m.prefs.Accessibility.HighContrast
			if m.prefsSt != nil {
				m.prefsSt.Save(m.prefs)
			}
			return m, nil
		case "k":
			m.prefs.Accessibility.KeyHints = !m.prefs.Accessibility.KeyHints
			if m.prefsSt != nil {
				m.prefsSt.Save(m.prefs)
			}
			return m, nil
		case "d":
			if m.prefs.Layout.Dock == DockRight {
				m.prefs.Layout.Dock = DockBottom
			} else if m.prefs.Layout.Dock == DockBottom {
				m.prefs.Layout.Dock = DockHidden
			} else {
				m.prefs.Layout.Dock = DockRight
			}
			if m.prefsSt != nil {
				m.prefsSt.Save(m.prefs)
			}
			return m, nil
		}
		// Unrecognised keys (arrows, page up/down, etc.) scroll the
		// recent-decisions log.
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tickMsg:
		return m.onTick(), tick()
	}
	return m, nil
}

// onTick runs one Bayesian decision step and updates the cached full
// render when the strategy chooses Incremental or Full; on Deferred it
// leaves lastFull untouched so View() reuses the prior frame, matching
// spec.md §4.9's frame-diff contract.
func (m DashboardModel) onTick() DashboardModel {
	isResize := m.resizing && time.Since(m.lastResizeAt) < tickInterval
	m.resizing = isResize

	level, signals := metrics.Green, metrics.HealthSignals{}
	if m.health != nil {
		level, signals = m.health()
	}
	if level == metrics.Red {
		m.errorCount++
	} else if m.errorCount > 0 {
		m.errorCount--
	}

	budgetMS := tickInterval.Seconds() * 1000
	f := FrameState{
		ChangeRatio:     changeRatioFromSignals(signals),
		IsResize:        isResize,
		BudgetRemaining: budgetMS,
		ErrorCount:      m.errorCount,
	}
	d := m.strategy.Decide(f)
	m.lastDecision = d
	if m.ledger != nil {
		m.ledger.Record(d.EvidenceEntry(time.Now().UnixMicro()))
	}

	if d.Chosen != ActionDeferred {
		m.lastFull = m.render(level, signals)
	}
	return m
}

func changeRatioFromSignals(s metrics.HealthSignals) float64 {
	v := (s.PoolUtilizationPct + s.WBQDepthPct + s.CommitDepthPct) / 300
	return clamp01(v)
}

// View renders the cached frame. Actual terminal output never redraws
// more than the strategy decided to on the last tick.
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}
	if m.lastFull == "" {
		return "agentmail-bus dashboard starting...\n"
	}
	return m.lastFull
}

func (m DashboardModel) render(level metrics.HealthLevel, signals metrics.HealthSignals) string {
	headerStyle := styleHeader
	if m.prefs.Accessibility.HighContrast {
		headerStyle = styleHiContrast
	}
	header := headerStyle.Render("agentmail-bus — operator dashboard")

	healthStyle := styleGreen
	switch level {
	case metrics.Yellow:
		healthStyle = styleYellow
	case metrics.Red:
		healthStyle = styleRed
	}
	healthLine := fmt.Sprintf("health: %s  pool=%.0f%% wbq=%.0f%% commit=%.0f%%",
		healthStyle.Render(string(level)), signals.PoolUtilizationPct, signals.WBQDepthPct, signals.CommitDepthPct)

	decisionLine := fmt.Sprintf("render: %s  confidence=%.2f", m.lastDecision.Chosen, m.lastDecision.Confidence)

	body := styleBox.Render(healthLine + "\n" + decisionLine)

	m.log.SetContent(m.renderLog())
	out := header + "\n" + body + "\n" + styleBox.Render(m.log.View())
	if m.prefs.Accessibility.KeyHints {
		out += "\n" + styleDim.Render("q quit · c contrast · k hints · d dock · ↑/↓ scroll log")
	}
	return out
}

// renderLog formats the evidence ledger's most recent decisions,
// newest first, for the scrollable log pane.
func (m DashboardModel) renderLog() string {
	if m.ledger == nil {
		return "(no evidence ledger attached)"
	}
	entries := m.ledger.Recent(50)
	if len(entries) == 0 {
		return "(no decisions recorded yet)"
	}
	var lines []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		lines = append(lines, fmt.Sprintf("[%s] %s action=%s confidence=%.2f — %s",
			time.UnixMicro(e.TS).Format("15:04:05"), e.DecisionPoint, e.Action, e.Confidence, e.Rationale))
	}
	return strings.Join(lines, "\n")
}
