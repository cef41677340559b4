package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

// newTestRepo creates a temporary SQLite repository for testing.
func newTestRepo(t *testing.T) *SQLite {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create test repo: %v", err)
	}

	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

// stores returns every Store implementation reachable from the test.
func stores(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	out := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return newTestRepo(t) },
		"memory": func(*testing.T) Store { return NewMemory() },
	}
	if url := os.Getenv("RENDEZVOUS_TEST_POSTGRES_URL"); url != "" {
		out["postgres"] = func(t *testing.T) Store {
			p, err := OpenPostgres(context.Background(), url)
			if err != nil {
				t.Fatalf("OpenPostgres: %v", err)
			}
			_, _ = p.pool.Exec(context.Background(), `TRUNCATE appointments, customers, contacts, users RESTART IDENTITY`)
			t.Cleanup(func() { _ = p.Close() })
			return p
		}
	}
	return out
}

// seed creates one customer, contact and user so that SQL foreign keys hold.
func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.AddCustomer(ctx, "Acme"); err != nil {
		t.Fatalf("AddCustomer: %v", err)
	}
	if _, err := s.AddContact(ctx, "Jane", "jane@example.com"); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if _, err := s.AddUser(ctx, "test", false); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
}

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 12, hour, min, 0, 0, time.UTC)
}

func newAppt(title string, start, end time.Time) appointment.Appointment {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return appointment.Appointment{
		Fields: appointment.Fields{
			Title:      title,
			Location:   "Office",
			Type:       "Meeting",
			Start:      start,
			End:        end,
			CustomerID: 1,
			UserID:     1,
			ContactID:  1,
		},
		CreatedAt: now,
		CreatedBy: "test",
		UpdatedAt: now,
		UpdatedBy: "test",
	}
}

func TestInsertAndList(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			// A non-UTC start must come back as the same instant in UTC.
			ny, err := time.LoadLocation("America/New_York")
			if err != nil {
				t.Fatalf("LoadLocation: %v", err)
			}
			start := time.Date(2024, 3, 12, 5, 0, 0, 0, ny) // 09:00 UTC
			a := newAppt("Planning", start, start.Add(time.Hour))
			a.Description = "Quarterly planning"

			id, err := s.InsertAppointment(ctx, a)
			if err != nil {
				t.Fatalf("InsertAppointment: %v", err)
			}
			if id <= 0 {
				t.Fatalf("id = %d, want > 0", id)
			}

			got, err := s.ListAppointments(ctx, appointment.Filter{ID: id})
			if err != nil {
				t.Fatalf("ListAppointments: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d appointments, want 1", len(got))
			}
			g := got[0]
			if !g.Start.Equal(at(9, 0)) || g.Start.Location() != time.UTC {
				t.Errorf("Start = %v, want 09:00 UTC", g.Start)
			}
			if !g.End.Equal(at(10, 0)) {
				t.Errorf("End = %v, want 10:00 UTC", g.End)
			}
			if g.Title != "Planning" || g.Description != "Quarterly planning" || g.CreatedBy != "test" {
				t.Errorf("round trip lost fields: %+v", g)
			}
			if !g.CreatedAt.Equal(a.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", g.CreatedAt, a.CreatedAt)
			}
		})
	}
}

func TestListFilters(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()
			if _, err := s.AddCustomer(ctx, "Globex"); err != nil {
				t.Fatal(err)
			}

			morning := newAppt("Morning", at(9, 0), at(10, 0))
			noon := newAppt("Noon", at(12, 0), at(13, 0))
			other := newAppt("Other", at(9, 0), at(10, 0))
			other.CustomerID = 2
			for _, a := range []appointment.Appointment{noon, morning, other} {
				if _, err := s.InsertAppointment(ctx, a); err != nil {
					t.Fatalf("InsertAppointment(%s): %v", a.Title, err)
				}
			}

			tests := []struct {
				name   string
				filter appointment.Filter
				want   []string
			}{
				{"all ordered by start", appointment.Filter{CustomerID: 1}, []string{"Morning", "Noon"}},
				{"other customer", appointment.Filter{CustomerID: 2}, []string{"Other"}},
				{"window touching end", appointment.Filter{CustomerID: 1, StartAfter: at(10, 0), EndBefore: at(11, 0)}, []string{"Morning"}},
				{"window touching start", appointment.Filter{CustomerID: 1, StartAfter: at(11, 0), EndBefore: at(12, 0)}, []string{"Noon"}},
				{"empty window", appointment.Filter{CustomerID: 1, StartAfter: at(10, 30), EndBefore: at(11, 30)}, nil},
			}
			for _, tt := range tests {
				got, err := s.ListAppointments(ctx, tt.filter)
				if err != nil {
					t.Fatalf("%s: %v", tt.name, err)
				}
				var titles []string
				for _, a := range got {
					titles = append(titles, a.Title)
				}
				if strings.Join(titles, ",") != strings.Join(tt.want, ",") {
					t.Errorf("%s: got %v, want %v", tt.name, titles, tt.want)
				}
			}
		})
	}
}

func TestInsertOverlap(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			if _, err := s.InsertAppointment(ctx, newAppt("First", at(9, 0), at(10, 0))); err != nil {
				t.Fatalf("InsertAppointment: %v", err)
			}

			_, err := s.InsertAppointment(ctx, newAppt("Clash", at(9, 30), at(10, 30)))
			var cerr *appointment.ConflictError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want ConflictError", err)
			}
			if !cerr.BlockStart.Equal(at(9, 0)) || !cerr.BlockEnd.Equal(at(10, 0)) {
				t.Errorf("block = %v-%v, want 09:00-10:00", cerr.BlockStart, cerr.BlockEnd)
			}

			// Back to back is fine.
			if _, err := s.InsertAppointment(ctx, newAppt("Next", at(10, 0), at(11, 0))); err != nil {
				t.Errorf("adjacent insert: %v", err)
			}
		})
	}
}

func TestUpdateAppointment(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			a := newAppt("First", at(9, 0), at(10, 0))
			id, err := s.InsertAppointment(ctx, a)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := s.InsertAppointment(ctx, newAppt("Second", at(11, 0), at(12, 0))); err != nil {
				t.Fatal(err)
			}

			// Moving within its own slot does not collide with itself.
			a.ID = id
			a.Start, a.End = at(9, 15), at(10, 15)
			a.Title = "Moved"
			ok, err := s.UpdateAppointment(ctx, a)
			if err != nil || !ok {
				t.Fatalf("UpdateAppointment = %v, %v", ok, err)
			}

			got, err := s.ListAppointments(ctx, appointment.Filter{ID: id})
			if err != nil {
				t.Fatal(err)
			}
			if got[0].Title != "Moved" || !got[0].Start.Equal(at(9, 15)) {
				t.Errorf("after update: %+v", got[0])
			}

			a.Start, a.End = at(10, 30), at(11, 30)
			if _, err := s.UpdateAppointment(ctx, a); !errors.As(err, new(*appointment.ConflictError)) {
				t.Errorf("overlapping update err = %v, want ConflictError", err)
			}

			missing := newAppt("Ghost", at(15, 0), at(16, 0))
			missing.ID = 999
			ok, err = s.UpdateAppointment(ctx, missing)
			if err != nil || ok {
				t.Errorf("update of missing = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestDeleteAndExists(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			id, err := s.InsertAppointment(ctx, newAppt("First", at(9, 0), at(10, 0)))
			if err != nil {
				t.Fatal(err)
			}

			if ok, err := s.Exists(ctx, id); err != nil || !ok {
				t.Fatalf("Exists = %v, %v", ok, err)
			}
			if ok, err := s.DeleteAppointment(ctx, id); err != nil || !ok {
				t.Fatalf("DeleteAppointment = %v, %v", ok, err)
			}
			if ok, err := s.Exists(ctx, id); err != nil || ok {
				t.Errorf("Exists after delete = %v, %v", ok, err)
			}
			if ok, err := s.DeleteAppointment(ctx, id); err != nil || ok {
				t.Errorf("second delete = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestDirectoryTables(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()
			if _, err := s.AddUser(ctx, "admin", true); err != nil {
				t.Fatal(err)
			}

			customers, err := s.ListCustomers(ctx)
			if err != nil || len(customers) != 1 || customers[0].Name != "Acme" {
				t.Errorf("ListCustomers = %+v, %v", customers, err)
			}
			contacts, err := s.ListContacts(ctx)
			if err != nil || len(contacts) != 1 || contacts[0].Email != "jane@example.com" {
				t.Errorf("ListContacts = %+v, %v", contacts, err)
			}
			users, err := s.ListUsers(ctx)
			if err != nil || len(users) != 2 {
				t.Fatalf("ListUsers = %+v, %v", users, err)
			}
			if users[0].Admin || !users[1].Admin {
				t.Errorf("admin flags = %v, %v", users[0].Admin, users[1].Admin)
			}

			if _, err := s.AddUser(ctx, "TEST", false); err == nil {
				t.Error("duplicate user name should fail")
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	_ = s.Close()

	if _, ok := mustOpen(t, "memory").(*Memory); !ok {
		t.Error("memory driver should return *Memory")
	}

	if _, err := Open(ctx, "oracle", ""); err == nil {
		t.Error("unknown driver should fail")
	}
}

func mustOpen(t *testing.T, driver string) Store {
	t.Helper()
	s, err := Open(context.Background(), driver, "")
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	return s
}

func TestListQuery(t *testing.T) {
	q, args := postgresDialect.listQuery(appointment.Filter{CustomerID: 3, StartAfter: at(9, 0)})
	if !strings.Contains(q, "customer_id = $1 AND end_at >= $2") {
		t.Errorf("query = %s", q)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}

	q, args = sqliteDialect.listQuery(appointment.Filter{})
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Errorf("empty filter rendered %q %v", q, args)
	}
}

func TestFormatTimeOrdersLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC))
	b := formatTime(time.Date(2024, 3, 12, 9, 0, 0, 500, time.UTC))
	c := formatTime(time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC))
	if a >= b || b >= c {
		t.Errorf("not ordered: %s %s %s", a, b, c)
	}
}
