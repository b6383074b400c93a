// Package tui provides a Bubble Tea dashboard for watching and steering
// mirror sessions.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/mirror/internal/report"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	onStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	offStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pinStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tabs and keys ─────────────────

type tabID int

const (
	tabSessions tabID = iota
	tabSchedule
	tabFilter
	tabCount
)

var tabNames = [tabCount]string{"Sessions", "Schedule", "Filter"}

type keyMap struct {
	Quit, Next, Prev, Up, Down       key.Binding
	Enable, Disable, Clear, Stop     key.Binding
	Refresh, Sessions, Sched, Filter key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Next:     key.NewBinding(key.WithKeys("tab", "l", "right"), key.WithHelp("→", "next tab")),
	Prev:     key.NewBinding(key.WithKeys("shift+tab", "h", "left"), key.WithHelp("←", "prev tab")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
	Enable:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enable")),
	Disable:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disable")),
	Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear override")),
	Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Sessions: key.NewBinding(key.WithKeys("1")),
	Sched:    key.NewBinding(key.WithKeys("2")),
	Filter:   key.NewBinding(key.WithKeys("3")),
}

// RefreshInterval is how often the dashboard re-reads state on its own.
const RefreshInterval = 5 * time.Second

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ── Model ────────────────────

// Sessions is the write side of the session registry the dashboard drives.
type Sessions interface {
	Enable(id string) bool
	Disable(id string) bool
	ClearManualOverride(id string) bool
	Stop(id string) bool
}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	sessions  Sessions
	snapshot  func() *report.Snapshot
	snap      *report.Snapshot
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	cursor    int
	status    string
}

// New creates a dashboard that reads state through snapshot and applies
// session actions through sessions.
func New(sessions Sessions, snapshot func() *report.Snapshot) Model {
	return Model{sessions: sessions, snapshot: snapshot, snap: snapshot()}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.activeTab = (m.activeTab + 1) % tabCount
		case key.Matches(msg, keys.Prev):
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case key.Matches(msg, keys.Sessions):
			m.activeTab = tabSessions
		case key.Matches(msg, keys.Sched):
			m.activeTab = tabSchedule
		case key.Matches(msg, keys.Filter):
			m.activeTab = tabFilter
		case key.Matches(msg, keys.Refresh):
			m.refresh()
			m.status = "refreshed"
		case m.activeTab == tabSessions && key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.rebuild()
			}
			return m, nil
		case m.activeTab == tabSessions && key.Matches(msg, keys.Down):
			if m.cursor < len(m.snap.Sessions)-1 {
				m.cursor++
				m.rebuild()
			}
			return m, nil
		case m.activeTab == tabSessions && key.Matches(msg, keys.Enable):
			m.act("enabled", m.sessions.Enable)
			return m, nil
		case m.activeTab == tabSessions && key.Matches(msg, keys.Disable):
			m.act("disabled", m.sessions.Disable)
			return m, nil
		case m.activeTab == tabSessions && key.Matches(msg, keys.Clear):
			m.act("override cleared for", m.sessions.ClearManualOverride)
			return m, nil
		case m.activeTab == tabSessions && key.Matches(msg, keys.Stop):
			m.act("stopped", m.sessions.Stop)
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

// act applies fn to the selected session and refreshes.
func (m *Model) act(verb string, fn func(id string) bool) {
	if len(m.snap.Sessions) == 0 {
		m.status = "no session selected"
		return
	}
	id := m.snap.Sessions[m.cursor].SessionID
	if fn(id) {
		m.status = verb + " " + id
	} else {
		m.status = "session " + id + " no longer exists"
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.snap = m.snapshot()
	if m.cursor >= len(m.snap.Sessions) {
		m.cursor = max(len(m.snap.Sessions)-1, 0)
	}
	m.rebuild()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	mirroring := len(m.snap.Mirroring())
	title := titleStyle.Width(m.width).Render(
		fmt.Sprintf("  mirror  %d session(s), %d mirroring", len(m.snap.Sessions), mirroring))

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  1-3 jump  r refresh  q quit"
	if m.activeTab == tabSessions {
		hint += "  ↑/↓ select  e enable  d disable  c clear  x stop"
	}
	right := m.status
	pad := m.width - lipgloss.Width(hint) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + right)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := max(m.height-3, 1)
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild() {
	if !m.ready {
		return
	}
	for i := tabID(0); i < tabCount; i++ {
		m.viewports[i].SetContent(m.renderTab(i))
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSessions:
		return m.renderSessions()
	case tabSchedule:
		return m.renderSchedule()
	case tabFilter:
		return m.renderFilter()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
}

func (m *Model) renderSessions() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Sessions (%d)", len(m.snap.Sessions))))
	if len(m.snap.Sessions) == 0 {
		sb.WriteString(dimStyle.Render("  (no sessions; run `mirror start`)") + "\n")
		return sb.String()
	}
	for i, s := range m.snap.Sessions {
		state := offStyle.Render("OFF")
		if s.Mirroring {
			state = onStyle.Render("ON ")
		}
		pin := "   "
		if s.ManualOverride {
			pin = pinStyle.Render(" ⚑ ")
		}
		name := s.SessionID
		if s.Title != "" {
			name += "  " + s.Title
		}
		line := fmt.Sprintf("  %s%s %s  %s  %s", state, pin, name,
			dimStyle.Render(filepath.Base(s.Directory)),
			dimStyle.Render("("+string(s.Reason)+")"))
		if i == m.cursor {
			line = selectedRowStyle.Width(max(m.width-2, 1)).Render(line)
		}
		sb.WriteString(line + "\n")
		if i == m.cursor {
			sb.WriteString(dimStyle.Render("      dir: "+s.Directory) + "\n")
			sb.WriteString(timeStyle.Render("      started: "+s.StartTime.Local().Format("2006-01-02 15:04:05")) + "\n")
		}
	}
	return sb.String()
}

func (m *Model) renderSchedule() string {
	s := m.snap.Schedule
	var sb strings.Builder
	sb.WriteString(heading("Schedule"))
	row(&sb, "Mode:", string(s.Mode))
	row(&sb, "Window:", s.Start+" - "+s.End)
	row(&sb, "Timezone:", s.Timezone)
	inWindow := offStyle.Render("No")
	if m.snap.InWindow {
		inWindow = onStyle.Render("Yes")
	}
	row(&sb, "In schedule:", inWindow)
	row(&sb, "Next change:", m.snap.NextChange)
	row(&sb, "Updated:", m.snap.GeneratedAt.Local().Format("15:04:05"))
	return sb.String()
}

func (m *Model) renderFilter() string {
	f := m.snap.Filter
	var sb strings.Builder
	sb.WriteString(heading("Filter"))
	if !f.Enabled {
		sb.WriteString(dimStyle.Render("  Filters disabled (mirroring everything)") + "\n")
		return sb.String()
	}
	row(&sb, "Mode:", string(f.Mode))
	if f.Regex != "" {
		row(&sb, "Regex:", f.Regex)
	}
	sb.WriteString(heading(fmt.Sprintf("Topics (%d)", len(f.Topics))))
	for _, t := range f.Topics {
		sb.WriteString(bullet(t))
	}
	sb.WriteString(heading(fmt.Sprintf("Keywords (%d)", len(f.Keywords))))
	for _, k := range f.Keywords {
		sb.WriteString(bullet(k))
	}
	return sb.String()
}

// Run starts the dashboard.
func Run(sessions Sessions, snapshot func() *report.Snapshot) error {
	p := tea.NewProgram(New(sessions, snapshot), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
