package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/tz"
)

type stubLister struct {
	appts []appointment.Appointment
	err   error
	last  appointment.Filter
}

func (s *stubLister) ListAppointments(_ context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	s.last = f
	if s.err != nil {
		return nil, s.err
	}
	var out []appointment.Appointment
	for _, a := range s.appts {
		if f.CustomerID != 0 && a.CustomerID != f.CustomerID {
			continue
		}
		if !f.StartAfter.IsZero() && a.End.Before(f.StartAfter) {
			continue
		}
		if !f.EndBefore.IsZero() && a.Start.After(f.EndBefore) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func at(h, m int) time.Time {
	return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
}

func appt(id, customer int64, start, end time.Time) appointment.Appointment {
	return appointment.Appointment{
		ID:     id,
		Fields: appointment.Fields{CustomerID: customer, Start: start, End: end},
	}
}

func TestOverlapsSymmetric(t *testing.T) {
	points := []time.Time{at(9, 0), at(9, 30), at(10, 0), at(10, 30), at(11, 0)}
	for _, s1 := range points {
		for _, e1 := range points {
			if !s1.Before(e1) {
				continue
			}
			for _, s2 := range points {
				for _, e2 := range points {
					if !s2.Before(e2) {
						continue
					}
					if Overlaps(s1, e1, s2, e2) != Overlaps(s2, e2, s1, e1) {
						t.Errorf("asymmetric for [%v,%v) [%v,%v)", s1, e1, s2, e2)
					}
				}
			}
		}
	}
}

func TestOverlapsBackToBack(t *testing.T) {
	if Overlaps(at(10, 0), at(11, 0), at(11, 0), at(12, 0)) {
		t.Error("back-to-back intervals must not overlap")
	}
}

func TestFindConflicts(t *testing.T) {
	repo := &stubLister{appts: []appointment.Appointment{
		appt(1, 7, at(9, 0), at(10, 0)),
		appt(2, 7, at(10, 0), at(10, 30)),
		appt(3, 7, at(11, 0), at(12, 0)),
		appt(4, 8, at(9, 0), at(12, 0)),
	}}
	d := New(repo, tz.New(time.UTC))
	ctx := context.Background()

	got, err := d.FindConflicts(ctx, 7, at(9, 30), at(11, 0), 0)
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("got %v, want appointments 1 and 2", ids(got))
	}
	if !repo.last.StartAfter.Equal(at(9, 30)) || repo.last.CustomerID != 7 {
		t.Errorf("unexpected filter %+v", repo.last)
	}

	got, err = d.FindConflicts(ctx, 7, at(9, 0), at(10, 0), 1)
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("excluded appointment collided with itself: %v", ids(got))
	}
}

func TestCheckReportsUnionBlock(t *testing.T) {
	repo := &stubLister{appts: []appointment.Appointment{
		appt(1, 7, at(9, 0), at(10, 0)),
		appt(2, 7, at(9, 45), at(10, 45)),
	}}
	d := New(repo, tz.New(time.UTC))

	err := d.Check(context.Background(), 7, at(9, 30), at(10, 15), 0)
	var cerr *appointment.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !cerr.BlockStart.Equal(at(9, 0)) || !cerr.BlockEnd.Equal(at(10, 45)) {
		t.Errorf("block = %v - %v, want 09:00 - 10:45", cerr.BlockStart, cerr.BlockEnd)
	}
	if len(cerr.Conflicts) != 2 {
		t.Errorf("conflicts = %d, want 2", len(cerr.Conflicts))
	}

	if err := d.Check(context.Background(), 7, at(10, 45), at(11, 30), 0); err != nil {
		t.Errorf("adjacent request should pass, got %v", err)
	}
}

func TestFindConflictsRepoError(t *testing.T) {
	boom := errors.New("boom")
	d := New(&stubLister{err: boom}, tz.New(time.UTC))
	if _, err := d.FindConflicts(context.Background(), 1, at(9, 0), at(10, 0), 0); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped boom", err)
	}
}

func TestBlockEmpty(t *testing.T) {
	s, e := Block(nil)
	if !s.IsZero() || !e.IsZero() {
		t.Errorf("Block(nil) = %v, %v", s, e)
	}
}

func ids(as []appointment.Appointment) []int64 {
	out := make([]int64, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}
