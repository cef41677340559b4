package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/calendar"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/watcher"
)

// agendaLoadedMsg is sent when a month grid is loaded.
type agendaLoadedMsg struct {
	month *calendar.Month
}

// eventMsg carries an appointment change published on the bus.
type eventMsg struct {
	event events.Event
}

// tickMsg is sent after every watcher tick.
type tickMsg struct {
	upcoming watcher.Upcoming
	ok       bool
}

// notifyMsg is sent once when an appointment enters the horizon.
type notifyMsg struct {
	upcoming watcher.Upcoming
}

type cancelledMsg struct {
	appointment appointment.Appointment
}

type duplicatedMsg struct {
	appointment appointment.Appointment
}

type errMsg struct {
	err error
}

type clearStatusMsg struct {
	seq int
}

func (m Model) loadAgenda(date time.Time) tea.Cmd {
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		month, err := svc.Agenda(ctx, sess, date)
		if err != nil {
			return errMsg{err: err}
		}
		return agendaLoadedMsg{month: month}
	}
}

func (m Model) cancelAppointment(a appointment.Appointment) tea.Cmd {
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		if err := svc.Cancel(ctx, sess, a); err != nil {
			return errMsg{err: err}
		}
		return cancelledMsg{appointment: a}
	}
}

func (m Model) duplicateAppointment(a appointment.Appointment, start time.Time) tea.Cmd {
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		created, err := svc.Duplicate(ctx, sess, a, start)
		if err != nil {
			return errMsg{err: err}
		}
		return duplicatedMsg{appointment: created}
	}
}

func clearStatusAfter(seq int) tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// errorText renders scheduling errors on one footer line.
func errorText(err error, loc *time.Location) string {
	var verr *appointment.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			msgs[i] = f.Message
		}
		return "Rejected: " + strings.Join(msgs, ", ")
	}
	var cerr *appointment.ConflictError
	if errors.As(err, &cerr) {
		start, end := cerr.BlockStart.In(loc), cerr.BlockEnd.In(loc)
		return fmt.Sprintf("Customer is busy %s %s-%s",
			start.Format("Mon Jan 2"), start.Format("15:04"), end.Format("15:04"))
	}
	if errors.Is(err, appointment.ErrNotFound) {
		return "Appointment no longer exists"
	}
	return "Error: " + err.Error()
}
