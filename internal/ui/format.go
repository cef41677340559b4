package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/calendar"
	"github.com/javiermolinar/rendezvous/internal/directory"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// names resolves reference ids for display. Unknown ids print as "#id".
type names struct {
	ctx context.Context
	dir *directory.Cache
}

func (n names) customer(id int64) string {
	if c, ok, err := n.dir.Customer(n.ctx, id); err == nil && ok {
		return c.Name
	}
	return fmt.Sprintf("#%d", id)
}

func (n names) contact(id int64) string {
	if c, ok, err := n.dir.Contact(n.ctx, id); err == nil && ok {
		return c.Name
	}
	return fmt.Sprintf("#%d", id)
}

func (n names) user(id int64) string {
	if u, ok, err := n.dir.User(n.ctx, id); err == nil && ok {
		return u.Name
	}
	return fmt.Sprintf("#%d", id)
}

// FormatSpan renders an appointment's time span, adding the end date when
// it falls on another day.
func FormatSpan(start, end time.Time) string {
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return start.Format(clockLayout) + "-" + end.Format(clockLayout)
	}
	return start.Format(clockLayout) + "-" + end.Format(dateLayout+" "+clockLayout)
}

// FormatDuration formats a duration as "1h30m", "45m", or "2h".
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}

// printAppointments prints appointments grouped by local day.
func printAppointments(w io.Writer, appts []appointment.Appointment, n names, now time.Time) {
	titleWidth := max(termWidth()-60, 20)

	var currentDate string
	for _, a := range appts {
		date := a.Start.Format(dateLayout)
		if date != currentDate {
			if currentDate != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", formatHeader(a.Start.Format("Mon Jan 2, 2006")))
			currentDate = date
		}
		printAppointmentRow(w, a, n, now, titleWidth)
	}
}

func printAppointmentRow(w io.Writer, a appointment.Appointment, n names, now time.Time, titleWidth int) {
	span := formatTime(FormatSpan(a.Start, a.End))
	if !now.Before(a.Start) && now.Before(a.End) {
		span = formatOngoing(FormatSpan(a.Start, a.End))
	}
	fmt.Fprintf(w, "    %s  %s  %-*s  %s\n",
		formatMuted(fmt.Sprintf("#%-4d", a.ID)),
		span,
		titleWidth, ansi.Truncate(a.Title, titleWidth, "…"),
		formatMuted(fmt.Sprintf("%s @ %s · %s · %s",
			a.Type, a.Location, n.customer(a.CustomerID), n.user(a.UserID))),
	)
}

// printDetail prints every field of one appointment.
func printDetail(w io.Writer, a appointment.Appointment, n names) {
	fmt.Fprintf(w, "%s %s\n", formatHeader(fmt.Sprintf("#%d", a.ID)), a.Title)
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-12s %s\n", label, value)
	}
	row("When", fmt.Sprintf("%s %s (%s)", a.Start.Format(dateLayout), FormatSpan(a.Start, a.End), FormatDuration(a.Duration())))
	row("Type", a.Type)
	row("Location", a.Location)
	row("Customer", n.customer(a.CustomerID))
	row("Contact", n.contact(a.ContactID))
	row("User", n.user(a.UserID))
	if strings.TrimSpace(a.Description) != "" {
		row("Description", a.Description)
	}
	if !a.CreatedAt.IsZero() {
		row("Created", fmt.Sprintf("%s by %s", a.CreatedAt.Format(dateLayout+" "+clockLayout), a.CreatedBy))
	}
	if !a.UpdatedAt.IsZero() && !a.UpdatedAt.Equal(a.CreatedAt) {
		row("Updated", fmt.Sprintf("%s by %s", a.UpdatedAt.Format(dateLayout+" "+clockLayout), a.UpdatedBy))
	}
}

// printMonth prints the month grid with a per-day appointment count.
func printMonth(w io.Writer, m *calendar.Month, today time.Time) {
	fmt.Fprintf(w, "  %s\n", formatHeader(m.Title()))

	header := make([]string, 7)
	for i := range header {
		header[i] = fmt.Sprintf("%-7s", calendar.WeekdayShortName(time.Weekday(i)))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(header, ""))

	days := m.Days()
	for i := 0; i < len(days); i += 7 {
		cells := make([]string, 0, 7)
		for _, d := range days[i:min(i+7, len(days))] {
			cell := fmt.Sprintf("%2d", d.Date.Day())
			if d.Len() > 0 {
				cell += fmt.Sprintf("(%d)", d.Len())
			}
			cell = fmt.Sprintf("%-7s", cell)
			switch {
			case sameDate(d.Date, today):
				cell = formatOngoing(cell)
			case !d.InMonth:
				cell = formatMuted(cell)
			}
			cells = append(cells, cell)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(cells, ""))
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// displayError prints a scheduling error for the terminal while keeping
// the underlying error for errors.As.
type displayError struct {
	err error
}

func (e displayError) Error() string { return describeError(e.err) }

func (e displayError) Unwrap() error { return e.err }

// describeError renders scheduling errors for the terminal, one field
// problem per line.
func describeError(err error) string {
	var verr *appointment.ValidationError
	if errors.As(err, &verr) {
		var b strings.Builder
		b.WriteString(formatError("appointment rejected:"))
		for _, f := range verr.Fields {
			fmt.Fprintf(&b, "\n  %-10s %s", f.Field, f.Message)
		}
		return b.String()
	}
	var cerr *appointment.ConflictError
	if errors.As(err, &cerr) {
		return fmt.Sprintf("%s customer is busy %s %s",
			formatError("conflict:"),
			cerr.BlockStart.Format(dateLayout),
			FormatSpan(cerr.BlockStart, cerr.BlockEnd))
	}
	if kind := appointment.Kind(err); kind != "internal" {
		return formatError(kind+":") + " " + err.Error()
	}
	return err.Error()
}
