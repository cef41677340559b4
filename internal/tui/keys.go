package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

// keyMap lists the bindings of normal mode.
type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	NextAppt  key.Binding
	PrevAppt  key.Binding
	NextMonth key.Binding
	PrevMonth key.Binding
	Today     key.Binding
	Cancel    key.Binding
	Duplicate key.Binding
	Copy      key.Binding
	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "prev day")),
		Right:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "next day")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "prev week")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "next week")),
		NextAppt:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next appointment")),
		PrevAppt:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev appointment")),
		NextMonth: key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next month")),
		PrevMonth: key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "prev month")),
		Today:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Cancel:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "cancel appointment")),
		Duplicate: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "duplicate")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.NextAppt, k.Cancel, k.Duplicate, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.NextAppt, k.PrevAppt, k.NextMonth, k.PrevMonth, k.Today},
		{k.Cancel, k.Duplicate, k.Copy, k.Refresh},
		{k.Help, k.Quit},
	}
}

// handleKeyMsg handles keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeConfirmCancel:
		return m.handleConfirmKeys(msg)
	case modeDuplicate:
		return m.handleDuplicateKeys(msg)
	default:
		return m.handleNormalKeys(msg)
	}
}

// handleNormalKeys handles keys in normal mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, k.Left):
		return m.moveCursor(m.cursor.AddDate(0, 0, -1))
	case key.Matches(msg, k.Right):
		return m.moveCursor(m.cursor.AddDate(0, 0, 1))
	case key.Matches(msg, k.Up):
		return m.moveCursor(m.cursor.AddDate(0, 0, -7))
	case key.Matches(msg, k.Down):
		return m.moveCursor(m.cursor.AddDate(0, 0, 7))
	case key.Matches(msg, k.NextMonth):
		return m.moveCursor(dateutil.MonthStart(m.cursor).AddDate(0, 1, 0))
	case key.Matches(msg, k.PrevMonth):
		return m.moveCursor(dateutil.MonthStart(m.cursor).AddDate(0, -1, 0))
	case key.Matches(msg, k.Today):
		return m.moveCursor(dateutil.TruncateToDay(m.now().In(m.loc)))

	case key.Matches(msg, k.NextAppt):
		if n := len(m.dayAppointments()); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return m, nil
	case key.Matches(msg, k.PrevAppt):
		if n := len(m.dayAppointments()); n > 0 {
			m.selected = (m.selected - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, k.Cancel):
		if _, ok := m.selectedAppointment(); ok {
			m.mode = modeConfirmCancel
		}
		return m, nil
	case key.Matches(msg, k.Duplicate):
		a, ok := m.selectedAppointment()
		if !ok {
			return m, nil
		}
		m.mode = modeDuplicate
		m.input.SetValue(a.Start.AddDate(0, 0, 7).Format("2006-01-02 15:04"))
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, k.Copy):
		a, ok := m.selectedAppointment()
		if !ok {
			return m, nil
		}
		if err := clipboard.WriteAll(m.copyText(a)); err != nil {
			cmd := m.setError(fmt.Errorf("copy failed: %w", err))
			return m, cmd
		}
		cmd := m.setStatus("Copied to clipboard")
		return m, cmd
	case key.Matches(msg, k.Refresh):
		m.loading = true
		return m, m.loadAgenda(m.cursor)
	}
	return m, nil
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeNormal
	a, ok := m.selectedAppointment()
	if !ok {
		return m, nil
	}
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		return m, m.cancelAppointment(a)
	default:
		cmd := m.setStatus("Kept " + a.Title)
		return m, cmd
	}
}

func (m Model) handleDuplicateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeNormal
		m.input.Blur()
		a, ok := m.selectedAppointment()
		if !ok {
			return m, nil
		}
		start, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(m.input.Value()), m.loc)
		if err != nil {
			cmd := m.setError(errors.New("start must look like 2006-01-02 15:04"))
			return m, cmd
		}
		return m, m.duplicateAppointment(a, start)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// moveCursor selects day, loading another month when it leaves the grid.
func (m Model) moveCursor(day time.Time) (tea.Model, tea.Cmd) {
	m.cursor = dateutil.TruncateToDay(day)
	m.selected = 0
	if m.month != nil && m.cursor.Month() == m.month.First.Month() && m.cursor.Year() == m.month.First.Year() {
		return m, nil
	}
	m.loading = true
	return m, m.loadAgenda(m.cursor)
}

// copyText is the clipboard form of an appointment.
func (m Model) copyText(a appointment.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", a.Title)
	fmt.Fprintf(&b, "%s %s-%s (%s)\n",
		a.Start.Format("Mon Jan 2, 2006"), a.Start.Format("15:04"), a.End.Format("15:04"), m.loc)
	fmt.Fprintf(&b, "%s @ %s\n", a.Type, a.Location)
	if a.Description != "" {
		b.WriteString(a.Description + "\n")
	}
	return b.String()
}
