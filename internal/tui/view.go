package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/calendar"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

const (
	defaultWidth  = 84
	defaultHeight = 32
	minColWidth   = 10
	minCellLines  = 2
	detailLines   = 7
)

// View renders the model.
func (m Model) View() string {
	width, height := m.width, m.height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}

	header := m.renderHeader(width)
	footer := m.renderFooter(width)
	if m.month == nil {
		body := m.styles.Muted.Render("Loading...")
		return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	}

	gridHeight := height - lipgloss.Height(header) - lipgloss.Height(footer) - detailLines - 1
	grid := m.renderGrid(width, gridHeight)
	details := m.renderDetails(width)
	return lipgloss.JoinVertical(lipgloss.Left, header, grid, details, footer)
}

func (m Model) renderHeader(width int) string {
	title := m.cursor.Format("January 2006")
	if m.month != nil {
		title = m.month.Title()
	}
	left := m.styles.Title.Render(title)
	right := m.styles.User.Render(m.sess.Actor() + " · " + m.loc.String())
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

// renderGrid draws the Sunday-first month, one row of cells per week.
func (m Model) renderGrid(width, height int) string {
	colWidth := max(width/7, minColWidth)
	cellLines := max(height/len(m.month.Weeks)-1, minCellLines)

	headers := make([]string, 7)
	for i := range headers {
		name := calendar.WeekdayShortName(time.Weekday(i))
		headers[i] = m.styles.DayHeader.Width(colWidth).Render(name)
	}
	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top, headers...)}

	for _, w := range m.month.Weeks {
		cells := make([]string, 7)
		for i, d := range w.Days {
			cells[i] = m.renderCell(d, colWidth, cellLines)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderCell(d *calendar.Day, width, lines int) string {
	today := dateutil.TruncateToDay(m.now().In(m.loc))
	selected := d.Date.Equal(m.cursor)

	base := m.styles.Day
	switch {
	case selected:
		base = m.styles.DaySelected
	case !d.InMonth:
		base = m.styles.DayOut
	case d.Len() > 0:
		base = m.styles.DayBusy
	}

	number := fmt.Sprintf("%2d", d.Date.Day())
	if d.Date.Equal(today) {
		number = m.styles.Today.Render(number)
	} else {
		number = m.styles.DayNumber.Render(number)
	}

	content := []string{number}
	appts := d.Appointments()
	for i, a := range appts {
		if len(content) == lines {
			break
		}
		if len(content) == lines-1 && i < len(appts)-1 {
			content = append(content, fmt.Sprintf("+%d more", len(appts)-i))
			break
		}
		entry := a.Start.Format("15:04") + " " + a.Title
		content = append(content, ansi.Truncate(entry, width-2, "…"))
	}

	return base.
		Width(width).
		Height(lines).
		MaxHeight(lines).
		PaddingLeft(1).
		Render(strings.Join(content, "\n"))
}

// renderDetails lists the selected day and expands the selected appointment.
func (m Model) renderDetails(width int) string {
	var lines []string
	lines = append(lines, m.styles.DayHeader.Render(m.cursor.Format("Monday, January 2")))

	appts := m.dayAppointments()
	if len(appts) == 0 {
		lines = append(lines, m.styles.Muted.Render("No appointments"))
		return lipgloss.NewStyle().Width(width).Height(detailLines).Render(strings.Join(lines, "\n"))
	}

	for i, a := range appts {
		entry := fmt.Sprintf("%s-%s  %s", a.Start.Format("15:04"), a.End.Format("15:04"), a.Title)
		entry = ansi.Truncate(entry, width-4, "…")
		if i == m.selected {
			lines = append(lines, m.styles.EntrySelected.Render("> "+entry))
		} else {
			lines = append(lines, m.styles.Entry.Render("  "+entry))
		}
	}

	if a, ok := m.selectedAppointment(); ok {
		lines = append(lines, "")
		lines = append(lines, m.describe(a, width)...)
	}
	if len(lines) > detailLines {
		lines = lines[:detailLines]
	}
	return lipgloss.NewStyle().Width(width).Height(detailLines).Render(strings.Join(lines, "\n"))
}

func (m Model) describe(a appointment.Appointment, width int) []string {
	label := m.styles.Muted.Render
	out := []string{
		label("Customer:") + " " + m.customerName(a.CustomerID) + "  " + label("Contact:") + " " + m.contactName(a.ContactID),
		label("Where:") + " " + a.Location + "  " + label("Type:") + " " + a.Type + "  " + label("Owner:") + " " + m.userName(a.UserID),
	}
	if a.Description != "" {
		out = append(out, label("Notes:")+" "+a.Description)
	}
	for i := range out {
		out[i] = ansi.Truncate(out[i], width, "…")
	}
	return out
}

func (m Model) customerName(id int64) string {
	if m.dir != nil {
		if c, ok, err := m.dir.Customer(m.ctx, id); err == nil && ok {
			return c.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (m Model) contactName(id int64) string {
	if m.dir != nil {
		if c, ok, err := m.dir.Contact(m.ctx, id); err == nil && ok {
			return c.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (m Model) userName(id int64) string {
	if m.dir != nil {
		if u, ok, err := m.dir.User(m.ctx, id); err == nil && ok {
			return u.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

// renderFooter shows the prompt, the status line or the countdown to the
// next appointment, followed by the key help.
func (m Model) renderFooter(width int) string {
	var line string
	switch {
	case m.mode == modeConfirmCancel:
		a, _ := m.selectedAppointment()
		line = m.styles.Error.Render(fmt.Sprintf("Cancel %q? (y/n)", a.Title))
	case m.mode == modeDuplicate:
		line = m.input.View()
	case m.status != "" && m.statusErr:
		line = m.styles.Error.Render(m.status)
	case m.status != "":
		line = m.styles.Status.Render(m.status)
	case m.upcoming != nil:
		line = m.renderCountdown()
	case m.loading:
		line = m.styles.Muted.Render("Loading...")
	}

	bar := m.styles.Footer.Width(width).Render(ansi.Truncate(line, width-2, "…"))
	return lipgloss.JoinVertical(lipgloss.Left, bar, m.help.View(m.keys))
}

func (m Model) renderCountdown() string {
	u := m.upcoming
	if u.Ongoing {
		return m.styles.Ongoing.Render("Now: ") + u.Appointment.Title + " ends in " + u.Countdown()
	}
	return m.styles.Upcoming.Render("Next: ") + u.Appointment.Title + " in " + u.Countdown()
}
