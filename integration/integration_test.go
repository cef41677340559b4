package integration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/db"
	"github.com/javiermolinar/rendezvous/internal/directory"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/policy"
	"github.com/javiermolinar/rendezvous/internal/scheduling"
	"github.com/javiermolinar/rendezvous/internal/session"
	"github.com/javiermolinar/rendezvous/internal/tz"
)

// openStore creates a fresh store for each test with automatic cleanup.
func openStore(t *testing.T, driver string) db.Store {
	t.Helper()
	dsn := ""
	if driver == "sqlite" {
		dsn = filepath.Join(t.TempDir(), "test.db")
	}
	store, err := db.Open(context.Background(), driver, dsn)
	if err != nil {
		t.Fatalf("failed to open %s store: %v", driver, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seed adds two customers, one contact and two users.
func seed(t *testing.T, store db.Store) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{"Daddy Warbucks", "Lady Gaga"} {
		if _, err := store.AddCustomer(ctx, name); err != nil {
			t.Fatalf("failed to add customer: %v", err)
		}
	}
	if _, err := store.AddContact(ctx, "Anika Costa", "acosta@company.com"); err != nil {
		t.Fatalf("failed to add contact: %v", err)
	}
	if _, err := store.AddUser(ctx, "test", false); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	if _, err := store.AddUser(ctx, "admin", true); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
}

type harness struct {
	store db.Store
	svc   *scheduling.Service
	sess  *session.Session
	seen  []events.Kind
}

func newHarness(t *testing.T, driver string, display, business *time.Location) *harness {
	t.Helper()
	store := openStore(t, driver)
	seed(t, store)

	pol, err := policy.New(policy.Config{Location: business})
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	h := &harness{
		store: store,
		sess:  session.New(appointment.User{ID: 1, Name: "test"}),
	}
	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(func(_ context.Context, ev events.Event) { h.seen = append(h.seen, ev.Kind) })
	h.svc = scheduling.New(store, pol, tz.New(display),
		scheduling.WithDirectory(directory.New(store)),
		scheduling.WithBus(bus),
	)
	return h
}

func (h *harness) book(t *testing.T, customerID int64, start, end time.Time) (appointment.Appointment, error) {
	t.Helper()
	return h.svc.Create(context.Background(), h.sess, appointment.Fields{
		Title:      "Consultation",
		Location:   "Phoenix, Arizona",
		Type:       "Planning Session",
		Start:      start,
		End:        end,
		CustomerID: customerID,
		ContactID:  1,
	})
}

func (h *harness) mustBook(t *testing.T, customerID int64, start, end time.Time) appointment.Appointment {
	t.Helper()
	a, err := h.book(t, customerID, start, end)
	if err != nil {
		t.Fatalf("failed to book %s-%s: %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return a
}

var drivers = []string{"memory", "sqlite"}

func TestFullWorkflow(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			h := newHarness(t, driver, time.UTC, time.UTC)
			ctx := context.Background()
			at := func(hour, min int) time.Time { return time.Date(2024, 5, 1, hour, min, 0, 0, time.UTC) }

			// 1. Book, then refuse an overlap for the same customer.
			first := h.mustBook(t, 1, at(9, 0), at(10, 0))
			_, err := h.book(t, 1, at(9, 30), at(10, 30))
			var cerr *appointment.ConflictError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if !cerr.BlockStart.Equal(at(9, 0)) || !cerr.BlockEnd.Equal(at(10, 0)) {
				t.Errorf("block = %v-%v", cerr.BlockStart, cerr.BlockEnd)
			}

			// 2. Another customer and a back-to-back booking are fine.
			h.mustBook(t, 2, at(9, 30), at(10, 30))
			second := h.mustBook(t, 1, at(10, 0), at(11, 0))

			// 3. Short bookings grow to the minimum duration.
			short := h.mustBook(t, 2, at(12, 0), at(12, 5))
			if !short.End.Equal(at(12, 20)) {
				t.Errorf("short end = %v, want 12:20", short.End)
			}

			// 4. Extending into the next appointment conflicts.
			longer := first.Fields
			longer.End = at(10, 30)
			if _, err := h.svc.Update(ctx, h.sess, first, longer); !errors.As(err, &cerr) {
				t.Fatalf("expected conflict on update, got %v", err)
			}

			// 5. Cancelling frees the slot; cancelling again is harmless.
			if err := h.svc.Cancel(ctx, h.sess, second); err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if err := h.svc.Cancel(ctx, h.sess, second); err != nil {
				t.Fatalf("second cancel: %v", err)
			}
			if _, err := h.svc.Update(ctx, h.sess, first, longer); err != nil {
				t.Fatalf("update after cancel: %v", err)
			}

			// 6. The day lists in start order.
			appts, err := h.svc.List(ctx, h.sess, appointment.Filter{StartAfter: at(0, 0), EndBefore: at(23, 59)})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(appts) != 3 {
				t.Fatalf("expected 3 appointments, got %d", len(appts))
			}
			for i := 1; i < len(appts); i++ {
				if appts[i].Start.Before(appts[i-1].Start) {
					t.Errorf("list not ordered by start: %v", appts)
				}
			}

			want := []events.Kind{
				events.Created, events.Created, events.Created, events.Created,
				events.Cancelled, events.Cancelled, events.Updated,
			}
			if len(h.seen) != len(want) {
				t.Fatalf("events = %v, want %v", h.seen, want)
			}
			for i := range want {
				if h.seen[i] != want[i] {
					t.Errorf("event %d = %s, want %s", i, h.seen[i], want[i])
				}
			}
		})
	}
}

func TestUpdateAfterRemoteDelete(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			h := newHarness(t, driver, time.UTC, time.UTC)
			ctx := context.Background()
			start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
			a := h.mustBook(t, 1, start, start.Add(time.Hour))

			// Another process removes the row behind our back.
			if _, err := h.store.DeleteAppointment(ctx, a.ID); err != nil {
				t.Fatal(err)
			}

			moved := a.Fields
			moved.Start, moved.End = start.Add(2*time.Hour), start.Add(3*time.Hour)
			got, err := h.svc.Update(ctx, h.sess, a, moved)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got.ID == a.ID {
				t.Error("expected the appointment to be booked again under a new id")
			}
			if !got.Start.Equal(moved.Start) {
				t.Errorf("start = %v, want %v", got.Start, moved.Start)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			h := newHarness(t, driver, time.UTC, time.UTC)
			if _, err := h.svc.Get(context.Background(), 999); !errors.Is(err, appointment.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
