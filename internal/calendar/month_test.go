package calendar

import (
	"testing"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/events"
)

func appt(id int64, start time.Time, d time.Duration) appointment.Appointment {
	return appointment.Appointment{
		ID:     id,
		Fields: appointment.Fields{Title: "Visit", Start: start, End: start.Add(d)},
	}
}

func TestNewMonth_March2024(t *testing.T) {
	m := NewMonth(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), time.UTC)

	if want := time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC); !m.Start().Equal(want) {
		t.Errorf("Start = %v, want %v", m.Start(), want)
	}
	if want := time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC); !m.End().Equal(want) {
		t.Errorf("End = %v, want %v", m.End(), want)
	}
	if len(m.Weeks) != 6 {
		t.Errorf("weeks = %d, want 6", len(m.Weeks))
	}
	if m.Title() != "March 2024" {
		t.Errorf("Title = %q", m.Title())
	}
}

func TestNewMonth_SundayStart(t *testing.T) {
	// September 2024 starts on a Sunday and ends on a Monday.
	m := NewMonth(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	if want := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC); !m.Start().Equal(want) {
		t.Errorf("Start = %v, want %v", m.Start(), want)
	}
	if want := time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC); !m.End().Equal(want) {
		t.Errorf("End = %v, want %v", m.End(), want)
	}
}

func TestNewMonth_SaturdayEnd(t *testing.T) {
	// August 2024 ends on a Saturday: no fully out-of-month trailing week.
	m := NewMonth(time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	if want := time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC); !m.End().Equal(want) {
		t.Errorf("End = %v, want %v", m.End(), want)
	}
}

func TestNewMonth_GridProperties(t *testing.T) {
	locs := []*time.Location{time.UTC}
	if ny, err := time.LoadLocation("America/New_York"); err == nil {
		locs = append(locs, ny)
	}

	for _, loc := range locs {
		for year := 2023; year <= 2026; year++ {
			for month := time.January; month <= time.December; month++ {
				m := NewMonth(time.Date(year, month, 15, 12, 0, 0, 0, loc), loc)

				if m.Start().Weekday() != time.Sunday {
					t.Fatalf("%s %d-%02d: starts on %v", loc, year, month, m.Start().Weekday())
				}
				if m.End().Weekday() != time.Saturday {
					t.Fatalf("%s %d-%02d: ends on %v", loc, year, month, m.End().Weekday())
				}

				seen := map[int]int{}
				for wi, w := range m.Weeks {
					for i, d := range w.Days {
						if d.Date.Weekday() != time.Weekday(i) {
							t.Fatalf("%d-%02d week %d: day %d is %v", year, month, wi, i, d.Date.Weekday())
						}
						if d.Date.Hour() != 0 {
							t.Fatalf("%d-%02d: day %v not at midnight", year, month, d.Date)
						}
						if d.InMonth != (d.Date.Month() == month) {
							t.Fatalf("%d-%02d: InMonth wrong for %v", year, month, d.Date)
						}
						if d.InMonth {
							seen[d.Date.Day()]++
						}
					}
				}

				daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
				if len(seen) != daysInMonth {
					t.Fatalf("%d-%02d: covers %d days, want %d", year, month, len(seen), daysInMonth)
				}
				for day, n := range seen {
					if n != 1 {
						t.Fatalf("%d-%02d: day %d appears %d times", year, month, day, n)
					}
				}
			}
		}
	}
}

func TestMonthAddPlacesByLocalStart(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	m := NewMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, est), est)

	// 02:00 UTC on the 5th is 21:00 EST on the 4th.
	a := appt(1, time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC), time.Hour)
	if !m.Add(a) {
		t.Fatal("Add returned false inside the grid")
	}

	day := m.Day(time.Date(2024, 3, 4, 12, 0, 0, 0, est))
	if day.Len() != 1 {
		t.Fatalf("4th holds %d appointments, want 1", day.Len())
	}
	if got := day.Appointments()[0].Start.Location(); got != est {
		t.Errorf("placed appointment location = %v, want EST", got)
	}

	if m.Add(appt(2, time.Date(2024, 5, 1, 9, 0, 0, 0, est), time.Hour)) {
		t.Error("Add outside the grid should report false")
	}
}

func TestMonthOutOfMonthDaysHoldAppointments(t *testing.T) {
	m := NewMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	m.Add(appt(1, time.Date(2024, 2, 26, 9, 0, 0, 0, time.UTC), time.Hour))

	day := m.Day(time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC))
	if day == nil || day.InMonth || day.Len() != 1 {
		t.Errorf("leading day = %+v", day)
	}
}

func TestDayKeepsStartOrder(t *testing.T) {
	m := NewMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	m.Add(appt(3, base.Add(14*time.Hour), time.Hour))
	m.Add(appt(1, base.Add(9*time.Hour), time.Hour))
	m.Add(appt(2, base.Add(9*time.Hour), time.Hour))

	got := m.Day(base).Appointments()
	wantIDs := []int64{1, 2, 3}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d = #%d, want #%d", i, got[i].ID, id)
		}
	}
}

func TestMonthRemoveAndUpdate(t *testing.T) {
	m := NewMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	old := appt(5, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Hour)
	m.Add(old)

	moved := old
	moved.Start = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	moved.End = moved.Start.Add(time.Hour)
	m.Update(old, moved)

	if n := m.Day(old.Start).Len(); n != 0 {
		t.Errorf("old day still holds %d", n)
	}
	if n := m.Day(moved.Start).Len(); n != 1 {
		t.Errorf("new day holds %d, want 1", n)
	}

	if m.Remove(old) {
		t.Error("Remove with stale start should not find the appointment in another week")
	}
	if !m.Remove(moved) {
		t.Error("Remove should find the moved appointment")
	}
	if len(m.Appointments()) != 0 {
		t.Error("grid should be empty")
	}
}

func TestMonthApply(t *testing.T) {
	m := NewMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	a := appt(1, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Hour)

	m.Apply(events.Event{Kind: events.Created, Appointment: a})
	if len(m.Appointments()) != 1 {
		t.Fatal("created event not applied")
	}

	b := a
	b.Start = a.Start.AddDate(0, 0, 1)
	b.End = a.End.AddDate(0, 0, 1)
	m.Apply(events.Event{Kind: events.Updated, Appointment: b, Previous: a})
	if m.Day(b.Start).Len() != 1 || m.Day(a.Start).Len() != 0 {
		t.Fatal("updated event not applied")
	}

	m.Apply(events.Event{Kind: events.Cancelled, Appointment: b})
	if len(m.Appointments()) != 0 {
		t.Fatal("cancelled event not applied")
	}
}

func TestRebuildIsReconstructible(t *testing.T) {
	appts := []appointment.Appointment{
		appt(1, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Hour),
		appt(2, time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC), time.Hour),
		appt(3, time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), time.Hour),
	}
	m := NewMonthFromAppointments(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.UTC, appts)
	m.Remove(appts[0])
	m.Rebuild(appts)

	if got := len(m.Appointments()); got != 3 {
		t.Errorf("rebuilt grid holds %d, want 3", got)
	}
}

func TestNextPrev(t *testing.T) {
	m := NewMonth(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.UTC)
	if got := m.Next().Title(); got != "February 2024" {
		t.Errorf("Next = %q", got)
	}
	if got := m.Prev().Title(); got != "December 2023" {
		t.Errorf("Prev = %q", got)
	}
}
