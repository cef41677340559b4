// Package tui provides the interactive month calendar for rendezvous.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/calendar"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
	"github.com/javiermolinar/rendezvous/internal/directory"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/scheduling"
	"github.com/javiermolinar/rendezvous/internal/session"
	"github.com/javiermolinar/rendezvous/internal/tui/theme"
	"github.com/javiermolinar/rendezvous/internal/watcher"
)

// statusTimeout is how long a status line stays in the footer.
const statusTimeout = 4 * time.Second

type mode int

const (
	modeNormal mode = iota
	modeConfirmCancel
	modeDuplicate
)

// Options configures the calendar.
type Options struct {
	Service   *scheduling.Service
	Session   *session.Session
	Directory *directory.Cache
	Theme     string
	Interval  time.Duration // watcher tick
	Horizon   time.Duration // how far ahead the footer looks
	Rescan    time.Duration // how often an idle watcher looks again
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Model is the calendar model.
type Model struct {
	ctx  context.Context
	svc  *scheduling.Service
	sess *session.Session
	dir  *directory.Cache
	loc  *time.Location
	now  func() time.Time

	styles *Styles
	keys   keyMap
	help   help.Model
	input  textinput.Model

	month    *calendar.Month
	cursor   time.Time // local midnight of the selected day
	selected int       // index into the selected day's appointments
	mode     mode
	loading  bool

	upcoming *watcher.Upcoming

	status    string
	statusErr bool
	statusSeq int

	width  int
	height int
}

// New creates the calendar model for opts.
func New(ctx context.Context, opts Options) Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Service.Location()

	t, _ := theme.Load(opts.Theme)
	styles := NewStyles(theme.NewPalette(t))

	in := textinput.New()
	in.Placeholder = "2006-01-02 15:04"
	in.CharLimit = 16
	in.Width = 20
	in.Prompt = "Duplicate to: "

	return Model{
		ctx:     ctx,
		svc:     opts.Service,
		sess:    opts.Session,
		dir:     opts.Directory,
		loc:     loc,
		now:     now,
		styles:  styles,
		keys:    defaultKeys(),
		help:    help.New(),
		input:   in,
		cursor:  dateutil.TruncateToDay(now().In(loc)),
		loading: true,
	}
}

// Init loads the month holding today.
func (m Model) Init() tea.Cmd {
	return m.loadAgenda(m.cursor)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case agendaLoadedMsg:
		if !sameMonth(msg.month.First, m.cursor) {
			return m, nil
		}
		m.month = msg.month
		m.loading = false
		m.clampSelection()
		return m, nil

	case eventMsg:
		if m.month != nil {
			m.applyEvent(msg.event)
			m.clampSelection()
		}
		return m, nil

	case tickMsg:
		if msg.ok {
			u := msg.upcoming
			m.upcoming = &u
		} else {
			m.upcoming = nil
		}
		return m, nil

	case notifyMsg:
		verb := "starts in "
		if msg.upcoming.Ongoing {
			verb = "ends in "
		}
		cmd := m.setStatus(msg.upcoming.Appointment.Title + " " + verb + msg.upcoming.Countdown())
		return m, cmd

	case cancelledMsg:
		cmd := m.setStatus("Cancelled " + msg.appointment.Title)
		return m, cmd

	case duplicatedMsg:
		cmd := m.setStatus("Booked again on " + msg.appointment.Start.Format("Mon Jan 2 15:04"))
		day := dateutil.TruncateToDay(msg.appointment.Start.In(m.loc))
		next, load := m.moveCursor(day)
		return next, tea.Batch(cmd, load)

	case errMsg:
		m.loading = false
		cmd := m.setError(msg.err)
		return m, cmd

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	}

	if m.mode == modeDuplicate {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// visible reports whether sess sees a in its calendar. Admins see every
// appointment unless they act as someone.
func (m Model) visible(a appointment.Appointment) bool {
	if m.sess.IsAdmin() && !m.sess.Acting() {
		return true
	}
	user, err := m.sess.Effective()
	if err != nil {
		return false
	}
	return a.UserID == user.ID
}

// applyEvent keeps the grid in sync with changes published on the bus.
func (m *Model) applyEvent(ev events.Event) {
	switch ev.Kind {
	case events.Created:
		if m.visible(ev.Appointment) {
			m.month.Add(ev.Appointment)
		}
	case events.Updated:
		m.month.Remove(ev.Previous)
		if m.visible(ev.Appointment) {
			m.month.Add(ev.Appointment)
		}
	case events.Cancelled:
		m.month.Remove(ev.Appointment)
	}
}

// dayAppointments returns the selected day's appointments.
func (m Model) dayAppointments() []appointment.Appointment {
	if m.month == nil {
		return nil
	}
	d := m.month.Day(m.cursor)
	if d == nil {
		return nil
	}
	return d.Appointments()
}

func (m Model) selectedAppointment() (appointment.Appointment, bool) {
	appts := m.dayAppointments()
	if m.selected < 0 || m.selected >= len(appts) {
		return appointment.Appointment{}, false
	}
	return appts[m.selected], true
}

func (m *Model) clampSelection() {
	n := len(m.dayAppointments())
	switch {
	case n == 0:
		m.selected = 0
	case m.selected >= n:
		m.selected = n - 1
	}
}

// setStatus shows text in the footer until statusTimeout passes.
func (m *Model) setStatus(text string) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusErr = false
	return clearStatusAfter(m.statusSeq)
}

func (m *Model) setError(err error) tea.Cmd {
	cmd := m.setStatus(errorText(err, m.loc))
	m.statusErr = true
	return cmd
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Run shows the calendar until the user quits or ctx is done. A watcher
// feeds the footer countdown and bus events keep the grid current.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	w := watcher.New(opts.Service, opts.Session,
		watcher.WithInterval(opts.Interval),
		watcher.WithHorizon(opts.Horizon),
		watcher.WithRescan(opts.Rescan),
		watcher.WithLogger(opts.Logger),
		watcher.OnNotify(func(_ context.Context, u watcher.Upcoming) {
			p.Send(notifyMsg{upcoming: u})
		}),
		watcher.OnTick(func(u watcher.Upcoming, ok bool) {
			p.Send(tickMsg{upcoming: u, ok: ok})
		}),
	)
	if bus := opts.Service.Bus(); bus != nil {
		unsubscribe := bus.Subscribe(func(ctx context.Context, ev events.Event) {
			w.Handle(ctx, ev)
			p.Send(eventMsg{event: ev})
		})
		defer unsubscribe()
	}

	w.Start()
	defer w.Stop()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
