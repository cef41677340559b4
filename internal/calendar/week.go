package calendar

import (
	"time"

	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

// Week holds 7 days starting from Sunday.
type Week struct {
	Start time.Time // Sunday anchor
	Days  [7]*Day   // Sunday (0) through Saturday (6)
}

// NewWeek creates the week anchored on the Sunday on or before date.
// Days outside month are flagged as out of month.
func NewWeek(date time.Time, month time.Month) *Week {
	sunday := dateutil.SundayAnchor(date)
	w := &Week{Start: sunday}
	for i := range w.Days {
		d := sunday.AddDate(0, 0, i)
		w.Days[i] = NewDay(d, d.Month() == month)
	}
	return w
}

// Day returns the bucket for a weekday.
func (w *Week) Day(wd time.Weekday) *Day {
	if wd < time.Sunday || wd > time.Saturday {
		return nil
	}
	return w.Days[wd]
}

// End returns the Saturday of the week.
func (w *Week) End() time.Time {
	return w.Start.AddDate(0, 0, 6)
}

// Len returns the number of appointments across the week.
func (w *Week) Len() int {
	n := 0
	for _, d := range w.Days {
		n += d.Len()
	}
	return n
}

// WeekdayShortName returns a two letter header for a weekday.
func WeekdayShortName(wd time.Weekday) string {
	return wd.String()[:2]
}
