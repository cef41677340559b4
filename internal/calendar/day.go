package calendar

import (
	"slices"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

// Day holds the appointments whose local start falls on Date.
type Day struct {
	Date    time.Time // local midnight
	InMonth bool      // false for leading/trailing days of the grid
	appts   []appointment.Appointment
}

// NewDay creates an empty Day for the given date.
func NewDay(date time.Time, inMonth bool) *Day {
	return &Day{
		Date:    dateutil.TruncateToDay(date),
		InMonth: inMonth,
	}
}

// Appointments returns a copy of the day's appointments ordered by start.
func (d *Day) Appointments() []appointment.Appointment {
	return slices.Clone(d.appts)
}

// Len returns the number of appointments in the day.
func (d *Day) Len() int {
	return len(d.appts)
}

// add inserts a, keeping start order. Ties break on id so the order is stable.
func (d *Day) add(a appointment.Appointment) {
	i, _ := slices.BinarySearchFunc(d.appts, a, compareAppointments)
	d.appts = slices.Insert(d.appts, i, a)
}

// remove drops the appointment with id, reporting whether it was present.
func (d *Day) remove(id int64) bool {
	i := slices.IndexFunc(d.appts, func(a appointment.Appointment) bool { return a.ID == id })
	if i < 0 {
		return false
	}
	d.appts = slices.Delete(d.appts, i, i+1)
	return true
}

func compareAppointments(a, b appointment.Appointment) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
