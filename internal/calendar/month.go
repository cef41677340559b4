// Package calendar builds Sunday-first month grids of appointments.
//
// A Month is a derived view: it owns no canonical data and can always be
// rebuilt from the appointment list. It is not safe for concurrent use.
package calendar

import (
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
	"github.com/javiermolinar/rendezvous/internal/events"
)

// Month is the grid of whole weeks covering one calendar month.
type Month struct {
	First time.Time // local midnight of the 1st
	Weeks []*Week
	loc   *time.Location
}

// NewMonth builds an empty grid for the month containing date in loc.
// The first week is anchored on the Sunday on or before the 1st and the last
// week is the one holding the month's final day.
func NewMonth(date time.Time, loc *time.Location) *Month {
	first := dateutil.MonthStart(date.In(loc))
	last := dateutil.MonthEnd(first)

	m := &Month{First: first, loc: loc}
	for anchor := dateutil.SundayAnchor(first); !anchor.After(last); anchor = anchor.AddDate(0, 0, 7) {
		m.Weeks = append(m.Weeks, NewWeek(anchor, first.Month()))
	}
	return m
}

// NewMonthFromAppointments builds the grid and places appts into it.
// Appointments outside the grid are ignored.
func NewMonthFromAppointments(date time.Time, loc *time.Location, appts []appointment.Appointment) *Month {
	m := NewMonth(date, loc)
	m.Rebuild(appts)
	return m
}

// Location returns the zone the grid is laid out in.
func (m *Month) Location() *time.Location {
	return m.loc
}

// Start returns the first Sunday of the grid.
func (m *Month) Start() time.Time {
	return m.Weeks[0].Start
}

// End returns the last Saturday of the grid.
func (m *Month) End() time.Time {
	return m.Weeks[len(m.Weeks)-1].End()
}

// Range returns the half-open instant range [Start, End+1 day) covered by the grid.
func (m *Month) Range() (from, to time.Time) {
	return m.Start(), m.End().AddDate(0, 0, 1)
}

// Title returns e.g. "March 2024".
func (m *Month) Title() string {
	return m.First.Format("January 2006")
}

// Next returns an empty grid for the following month.
func (m *Month) Next() *Month {
	return NewMonth(m.First.AddDate(0, 1, 0), m.loc)
}

// Prev returns an empty grid for the previous month.
func (m *Month) Prev() *Month {
	return NewMonth(m.First.AddDate(0, -1, 0), m.loc)
}

// Week returns the week whose Sunday anchor matches t's, or nil.
func (m *Month) Week(t time.Time) *Week {
	anchor := dateutil.SundayAnchor(t.In(m.loc))
	for _, w := range m.Weeks {
		if w.Start.Equal(anchor) {
			return w
		}
	}
	return nil
}

// Day returns the bucket for t's local date, or nil outside the grid.
func (m *Month) Day(t time.Time) *Day {
	w := m.Week(t)
	if w == nil {
		return nil
	}
	return w.Day(t.In(m.loc).Weekday())
}

// Days returns every day of the grid in order.
func (m *Month) Days() []*Day {
	days := make([]*Day, 0, len(m.Weeks)*7)
	for _, w := range m.Weeks {
		days = append(days, w.Days[:]...)
	}
	return days
}

// Rebuild clears the grid and places appts again.
func (m *Month) Rebuild(appts []appointment.Appointment) {
	for _, d := range m.Days() {
		d.appts = nil
	}
	for _, a := range appts {
		m.Add(a)
	}
}

// Add places a into the bucket of its local start date.
// It reports false when that date is outside the grid.
func (m *Month) Add(a appointment.Appointment) bool {
	day := m.Day(a.Start)
	if day == nil {
		return false
	}
	day.add(a.In(m.loc))
	return true
}

// Remove drops a from the grid. Only the week of a's start is scanned.
func (m *Month) Remove(a appointment.Appointment) bool {
	w := m.Week(a.Start)
	if w == nil {
		return false
	}
	for _, d := range w.Days {
		if d.remove(a.ID) {
			return true
		}
	}
	return false
}

// Update moves an appointment from old's bucket to updated's.
func (m *Month) Update(old, updated appointment.Appointment) {
	m.Remove(old)
	m.Add(updated)
}

// Apply keeps the grid in sync with an appointment change.
func (m *Month) Apply(ev events.Event) {
	switch ev.Kind {
	case events.Created:
		m.Add(ev.Appointment)
	case events.Updated:
		m.Update(ev.Previous, ev.Appointment)
	case events.Cancelled:
		m.Remove(ev.Appointment)
	}
}

// Appointments returns every placed appointment in grid order.
func (m *Month) Appointments() []appointment.Appointment {
	var out []appointment.Appointment
	for _, d := range m.Days() {
		out = append(out, d.appts...)
	}
	return out
}
