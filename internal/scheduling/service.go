// Package scheduling turns appointment requests into persisted records.
//
// Every call goes through the same pipeline: field validation, duration
// clamping, the business window, the customer conflict check and finally the
// repository. Successful writes are published on the event bus so that
// calendar grids and the upcoming watcher can follow along.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/conflict"
	"github.com/javiermolinar/rendezvous/internal/directory"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/guard"
	"github.com/javiermolinar/rendezvous/internal/policy"
	"github.com/javiermolinar/rendezvous/internal/session"
	"github.com/javiermolinar/rendezvous/internal/tz"
)

const tracerName = "github.com/javiermolinar/rendezvous/internal/scheduling"

// Service orchestrates create, update and cancel.
type Service struct {
	repo     appointment.Repository
	detector *conflict.Detector
	policy   *policy.Policy
	norm     *tz.Normalizer
	dir      *directory.Cache
	locker   guard.Locker
	bus      *events.Bus
	now      func() time.Time
	log      zerolog.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithDirectory enables reference validation against dir.
func WithDirectory(dir *directory.Cache) Option {
	return func(s *Service) { s.dir = dir }
}

// WithLocker serialises the conflict check and write per customer.
func WithLocker(l guard.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithBus publishes appointment changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithTracer sets the tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New creates a Service.
func New(repo appointment.Repository, pol *policy.Policy, norm *tz.Normalizer, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		detector: conflict.New(repo, norm),
		policy:   pol,
		norm:     norm,
		locker:   guard.NewLocal(),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Policy returns the business-hours policy in use.
func (s *Service) Policy() *policy.Policy { return s.policy }

// Location returns the display zone.
func (s *Service) Location() *time.Location { return s.norm.Location() }

// Bus returns the event bus, which may be nil.
func (s *Service) Bus() *events.Bus { return s.bus }

// Create validates f and stores it as a new appointment.
func (s *Service) Create(ctx context.Context, sess *session.Session, f appointment.Fields) (appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.create", trace.WithAttributes(
		attribute.Int64("customer.id", f.CustomerID),
	))
	defer span.End()

	a, err := s.create(ctx, sess, f)
	s.finish(span, "create", f, a, err)
	return a, err
}

func (s *Service) create(ctx context.Context, sess *session.Session, f appointment.Fields) (appointment.Appointment, error) {
	user, err := effective(sess)
	if err != nil {
		return appointment.Appointment{}, err
	}
	f, err = s.prepare(ctx, sess, user, f, 0)
	if err != nil {
		return appointment.Appointment{}, err
	}
	f = s.clamp(f)
	if err := s.checkWindow(f); err != nil {
		return appointment.Appointment{}, err
	}
	return s.insert(ctx, sess, f)
}

// Update replaces existing with f and returns the new record. existing must
// be discarded by the caller afterwards.
//
// If existing is no longer stored, f is created as a new appointment
// instead. If f equals existing, nothing is written and existing is returned.
func (s *Service) Update(ctx context.Context, sess *session.Session, existing appointment.Appointment, f appointment.Fields) (appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.update", trace.WithAttributes(
		attribute.Int64("appointment.previous_id", existing.ID),
		attribute.Int64("customer.id", f.CustomerID),
	))
	defer span.End()

	a, err := s.update(ctx, sess, existing, f)
	s.finish(span, "update", f, a, err)
	return a, err
}

func (s *Service) update(ctx context.Context, sess *session.Session, existing appointment.Appointment, f appointment.Fields) (appointment.Appointment, error) {
	user, err := effective(sess)
	if err != nil {
		return appointment.Appointment{}, err
	}
	f, err = s.prepare(ctx, sess, user, f, existing.UserID)
	if err != nil {
		return appointment.Appointment{}, err
	}

	found := false
	if existing.Persisted() {
		found, err = s.repo.Exists(ctx, existing.ID)
		if err != nil {
			return appointment.Appointment{}, &appointment.PersistenceError{Op: "checking appointment", Err: err}
		}
	}
	if !found {
		s.log.Info().Int64("appointment_id", existing.ID).Msg("appointment vanished, creating it again")
		f = s.clamp(f)
		if err := s.checkWindow(f); err != nil {
			return appointment.Appointment{}, err
		}
		return s.insert(ctx, sess, f)
	}

	// Compared before and after clamping so a raised minimum duration
	// never rewrites an appointment the caller did not change.
	if f.Equal(existing.Fields) {
		return existing, nil
	}
	f = s.clamp(f)
	if f.Equal(existing.Fields) {
		return existing, nil
	}
	if err := s.checkWindow(f); err != nil {
		return appointment.Appointment{}, err
	}

	release, err := s.locker.Lock(ctx, f.CustomerID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	defer release()

	if err := s.detector.Check(ctx, f.CustomerID, f.Start, f.End, existing.ID); err != nil {
		return appointment.Appointment{}, err
	}

	now, actor := s.now(), sess.Actor()
	updated := existing
	updated.Fields = f
	updated.UpdatedAt = now
	updated.UpdatedBy = actor

	ok, err := s.repo.UpdateAppointment(ctx, s.canonical(updated))
	if err != nil {
		return appointment.Appointment{}, s.storageError("updating appointment", err)
	}
	if !ok {
		// Deleted between the existence check and the write.
		return s.persistNew(ctx, sess, f)
	}

	updated = updated.In(s.norm.Location())
	ev := events.New(events.Updated, now, actor, updated)
	ev.Previous = existing.In(s.norm.Location())
	s.bus.Publish(ctx, ev)
	return updated, nil
}

// Cancel deletes a. Cancelling an appointment that is already gone is not
// an error; the cancellation event is still published so views drop it.
func (s *Service) Cancel(ctx context.Context, sess *session.Session, a appointment.Appointment) error {
	ctx, span := s.tracer.Start(ctx, "scheduling.cancel", trace.WithAttributes(
		attribute.Int64("appointment.id", a.ID),
	))
	defer span.End()

	err := s.cancel(ctx, sess, a)
	s.finish(span, "cancel", a.Fields, a, err)
	return err
}

func (s *Service) cancel(ctx context.Context, sess *session.Session, a appointment.Appointment) error {
	if _, err := effective(sess); err != nil {
		return err
	}
	if !a.Persisted() {
		return appointment.ErrNotFound
	}

	ok, err := s.repo.DeleteAppointment(ctx, a.ID)
	if err != nil {
		return &appointment.PersistenceError{Op: "deleting appointment", Err: err}
	}
	if !ok {
		s.log.Debug().Int64("appointment_id", a.ID).Msg("appointment already deleted")
	}

	s.bus.Publish(ctx, events.New(events.Cancelled, s.now(), sess.Actor(), a.In(s.norm.Location())))
	return nil
}

// Duplicate copies existing to a new appointment starting at start with the
// same duration. Non-admins become the owner of the copy.
func (s *Service) Duplicate(ctx context.Context, sess *session.Session, existing appointment.Appointment, start time.Time) (appointment.Appointment, error) {
	f := existing.Fields
	f.End = start.Add(existing.Duration())
	f.Start = start
	if sess == nil || !sess.IsAdmin() {
		f.UserID = 0
	}
	return s.Create(ctx, sess, f)
}

// CreateTestAppointment books a minimum-length appointment starting in
// `in` from now. Only available in testing mode.
func (s *Service) CreateTestAppointment(ctx context.Context, sess *session.Session, customerID, contactID int64, in time.Duration) (appointment.Appointment, error) {
	if !s.policy.TestingMode() {
		verr := &appointment.ValidationError{}
		verr.Add("start", appointment.CodeTestingOnly, "test appointments need testing mode")
		return appointment.Appointment{}, verr
	}

	minutes := int(in / time.Minute)
	start := s.now().In(s.norm.Location()).Add(in).Truncate(time.Second)
	return s.Create(ctx, sess, appointment.Fields{
		Title:       fmt.Sprintf("Alarm Test - %d Minute", minutes),
		Description: "Generated to exercise the upcoming appointment alert",
		Location:    "Test",
		Type:        "Test",
		Start:       start,
		End:         start.Add(s.policy.MinDuration()),
		CustomerID:  customerID,
		ContactID:   contactID,
	})
}

// prepare validates f, applies defaults and moves it to the display zone.
// owner is the user of the appointment being edited, or zero.
func (s *Service) prepare(ctx context.Context, sess *session.Session, user appointment.User, f appointment.Fields, owner int64) (appointment.Fields, error) {
	verr := &appointment.ValidationError{}
	if err := f.Validate(); err != nil {
		var fieldErrs *appointment.ValidationError
		if !errors.As(err, &fieldErrs) {
			return f, err
		}
		verr.Merge(fieldErrs)
	}

	switch {
	case f.UserID == 0 && owner > 0:
		f.UserID = owner
	case f.UserID == 0:
		f.UserID = user.ID
	case f.UserID != user.ID && f.UserID != owner && !sess.IsAdmin():
		verr.Add("user", appointment.CodeUserNotAllowed, "only admins can book for another user")
	}

	if s.dir != nil {
		refErrs, err := s.dir.CheckReferences(ctx, f)
		if err != nil {
			return f, &appointment.PersistenceError{Op: "loading references", Err: err}
		}
		verr.Merge(refErrs)
	}

	if err := verr.OrNil(); err != nil {
		return f, err
	}

	loc := s.norm.Location()
	f.Start = f.Start.In(loc)
	f.End = f.End.In(loc)
	return f, nil
}

// clamp extends f to the policy's minimum duration.
func (s *Service) clamp(f appointment.Fields) appointment.Fields {
	f.End = s.policy.ClampEnd(f.Start, f.End)
	return f
}

func (s *Service) checkWindow(f appointment.Fields) error {
	if s.policy.IsWithinWindow(f.Start, f.End) {
		return nil
	}
	opens, closes := s.policy.Window(f.Start)
	verr := &appointment.ValidationError{}
	verr.Add("start", appointment.CodeOutsideWindow, fmt.Sprintf("appointments must fall between %s and %s %s",
		opens.Format("15:04"), closes.Format("15:04"), opens.Location()))
	return verr
}

// insert locks the customer, then checks and stores f.
func (s *Service) insert(ctx context.Context, sess *session.Session, f appointment.Fields) (appointment.Appointment, error) {
	release, err := s.locker.Lock(ctx, f.CustomerID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	defer release()
	return s.persistNew(ctx, sess, f)
}

// persistNew expects the customer lock to be held.
func (s *Service) persistNew(ctx context.Context, sess *session.Session, f appointment.Fields) (appointment.Appointment, error) {
	if err := s.detector.Check(ctx, f.CustomerID, f.Start, f.End, 0); err != nil {
		return appointment.Appointment{}, err
	}

	now, actor := s.now(), sess.Actor()
	a := appointment.Appointment{
		Fields:    f,
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
	}

	id, err := s.repo.InsertAppointment(ctx, s.canonical(a))
	if err != nil {
		return appointment.Appointment{}, s.storageError("inserting appointment", err)
	}
	a.ID = id
	a = a.In(s.norm.Location())

	s.bus.Publish(ctx, events.New(events.Created, now, actor, a))
	return a, nil
}

// storageError passes a storage-level conflict through in the display zone
// and wraps everything else.
func (s *Service) storageError(op string, err error) error {
	var cerr *appointment.ConflictError
	if errors.As(err, &cerr) {
		loc := s.norm.Location()
		out := &appointment.ConflictError{
			BlockStart: cerr.BlockStart.In(loc),
			BlockEnd:   cerr.BlockEnd.In(loc),
		}
		for _, c := range cerr.Conflicts {
			out.Conflicts = append(out.Conflicts, c.In(loc))
		}
		return out
	}
	return &appointment.PersistenceError{Op: op, Err: err}
}

func (s *Service) canonical(a appointment.Appointment) appointment.Appointment {
	a.Start = s.norm.ToCanonical(a.Start)
	a.End = s.norm.ToCanonical(a.End)
	a.CreatedAt = s.norm.ToCanonical(a.CreatedAt)
	a.UpdatedAt = s.norm.ToCanonical(a.UpdatedAt)
	return a
}

func (s *Service) finish(span trace.Span, op string, f appointment.Fields, a appointment.Appointment, err error) {
	if err != nil {
		kind := appointment.Kind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.log.Warn().Err(err).
			Str("op", op).
			Str("err_kind", kind).
			Int64("customer_id", f.CustomerID).
			Msg("scheduling request failed")
		return
	}
	span.SetAttributes(attribute.Int64("appointment.id", a.ID))
	s.log.Debug().
		Str("op", op).
		Int64("appointment_id", a.ID).
		Int64("customer_id", a.CustomerID).
		Time("start", a.Start).
		Time("end", a.End).
		Msg("scheduling request done")
}

func effective(sess *session.Session) (appointment.User, error) {
	if sess == nil {
		return appointment.User{}, appointment.ErrNoUser
	}
	return sess.Effective()
}
