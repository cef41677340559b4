package scheduling

import (
	"context"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/calendar"
	"github.com/javiermolinar/rendezvous/internal/session"
)

// List returns appointments matching f in the display zone.
// Regular users, and admins acting as someone, only see their own.
func (s *Service) List(ctx context.Context, sess *session.Session, f appointment.Filter) ([]appointment.Appointment, error) {
	user, err := effective(sess)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() || sess.Acting() {
		f.UserID = user.ID
	}
	if !f.StartAfter.IsZero() {
		f.StartAfter = s.norm.ToCanonical(f.StartAfter)
	}
	if !f.EndBefore.IsZero() {
		f.EndBefore = s.norm.ToCanonical(f.EndBefore)
	}

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, &appointment.PersistenceError{Op: "listing appointments", Err: err}
	}
	loc := s.norm.Location()
	for i := range appts {
		appts[i] = appts[i].In(loc)
	}
	return appts, nil
}

// Get loads one appointment by id.
func (s *Service) Get(ctx context.Context, id int64) (appointment.Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, appointment.Filter{ID: id})
	if err != nil {
		return appointment.Appointment{}, &appointment.PersistenceError{Op: "loading appointment", Err: err}
	}
	if len(appts) == 0 {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return appts[0].In(s.norm.Location()), nil
}

// Agenda builds the calendar grid of the month containing date, filled with
// the appointments visible to sess.
func (s *Service) Agenda(ctx context.Context, sess *session.Session, date time.Time) (*calendar.Month, error) {
	m := calendar.NewMonth(date.In(s.norm.Location()), s.norm.Location())
	from, to := m.Range()
	appts, err := s.List(ctx, sess, appointment.Filter{StartAfter: from, EndBefore: to})
	if err != nil {
		return nil, err
	}
	m.Rebuild(appts)
	return m, nil
}

// Upcoming returns the effective user's appointments that are ongoing at
// from or start within horizon of it, ordered by start.
func (s *Service) Upcoming(ctx context.Context, sess *session.Session, from time.Time, horizon time.Duration) ([]appointment.Appointment, error) {
	user, err := effective(sess)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListAppointments(ctx, appointment.Filter{
		UserID:     user.ID,
		StartAfter: s.norm.ToCanonical(from),
		EndBefore:  s.norm.ToCanonical(from.Add(horizon)),
	})
	if err != nil {
		return nil, &appointment.PersistenceError{Op: "listing upcoming appointments", Err: err}
	}

	out := appts[:0]
	for _, a := range appts {
		// The filter is inclusive; an appointment ending exactly now is over.
		if a.End.After(from) {
			out = append(out, a.In(s.norm.Location()))
		}
	}
	return out, nil
}

// Next returns the effective user's first appointment starting after from.
func (s *Service) Next(ctx context.Context, sess *session.Session, from time.Time) (appointment.Appointment, bool, error) {
	user, err := effective(sess)
	if err != nil {
		return appointment.Appointment{}, false, err
	}
	appts, err := s.repo.ListAppointments(ctx, appointment.Filter{
		UserID:     user.ID,
		StartAfter: s.norm.ToCanonical(from),
	})
	if err != nil {
		return appointment.Appointment{}, false, &appointment.PersistenceError{Op: "finding next appointment", Err: err}
	}
	for _, a := range appts {
		if a.Start.After(from) {
			return a.In(s.norm.Location()), true, nil
		}
	}
	return appointment.Appointment{}, false, nil
}
