package db

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/conflict"
)

// ErrDuplicateUser is returned when a user name is already taken.
var ErrDuplicateUser = errors.New("user name already taken")

// Memory is a Store kept in process memory. It enforces the same
// overlap guard as the SQL stores.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	appts     map[int64]appointment.Appointment
	customers []appointment.Customer
	contacts  []appointment.Contact
	users     []appointment.User
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{appts: make(map[int64]appointment.Appointment)}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// ListAppointments returns appointments matching f ordered by start.
func (m *Memory) ListAppointments(_ context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []appointment.Appointment
	for _, a := range m.appts {
		if matches(a, f) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b appointment.Appointment) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// InsertAppointment stores a new appointment and returns its ID.
func (m *Memory) InsertAppointment(_ context.Context, a appointment.Appointment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOverlap(a, 0); err != nil {
		return 0, err
	}
	m.nextID++
	a.ID = m.nextID
	m.appts[a.ID] = canonical(a)
	return a.ID, nil
}

// UpdateAppointment replaces the stored record with a.ID.
func (m *Memory) UpdateAppointment(_ context.Context, a appointment.Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.appts[a.ID]
	if !ok {
		return false, nil
	}
	if err := m.checkOverlap(a, a.ID); err != nil {
		return false, err
	}
	a.CreatedAt, a.CreatedBy = old.CreatedAt, old.CreatedBy
	m.appts[a.ID] = canonical(a)
	return true, nil
}

// DeleteAppointment removes a record. Reports false if it was absent.
func (m *Memory) DeleteAppointment(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appts[id]; !ok {
		return false, nil
	}
	delete(m.appts, id)
	return true, nil
}

// Exists reports whether a record with id is stored.
func (m *Memory) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.appts[id]
	return ok, nil
}

// ListCustomers returns every customer ordered by ID.
func (m *Memory) ListCustomers(context.Context) ([]appointment.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.customers), nil
}

// ListContacts returns every contact ordered by ID.
func (m *Memory) ListContacts(context.Context) ([]appointment.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.contacts), nil
}

// ListUsers returns every user ordered by ID.
func (m *Memory) ListUsers(context.Context) ([]appointment.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users), nil
}

// AddCustomer inserts a customer and returns its ID.
func (m *Memory) AddCustomer(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.customers) + 1)
	m.customers = append(m.customers, appointment.Customer{ID: id, Name: name})
	return id, nil
}

// AddContact inserts a contact and returns its ID.
func (m *Memory) AddContact(_ context.Context, name, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.contacts) + 1)
	m.contacts = append(m.contacts, appointment.Contact{ID: id, Name: name, Email: email})
	return id, nil
}

// AddUser inserts a user and returns its ID. Names are unique ignoring case.
func (m *Memory) AddUser(_ context.Context, name string, admin bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Name, name) {
			return 0, fmt.Errorf("inserting user: %w", ErrDuplicateUser)
		}
	}
	id := int64(len(m.users) + 1)
	m.users = append(m.users, appointment.User{ID: id, Name: name, Admin: admin})
	return id, nil
}

func (m *Memory) checkOverlap(a appointment.Appointment, excludeID int64) error {
	var conflicts []appointment.Appointment
	for _, other := range m.appts {
		if other.ID == excludeID || other.CustomerID != a.CustomerID {
			continue
		}
		if conflict.Overlaps(a.Start, a.End, other.Start, other.End) {
			conflicts = append(conflicts, other)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	slices.SortFunc(conflicts, func(x, y appointment.Appointment) int { return x.Start.Compare(y.Start) })
	start, end := conflict.Block(conflicts)
	return &appointment.ConflictError{BlockStart: start, BlockEnd: end, Conflicts: conflicts}
}

func matches(a appointment.Appointment, f appointment.Filter) bool {
	switch {
	case f.ID > 0 && a.ID != f.ID:
		return false
	case f.CustomerID > 0 && a.CustomerID != f.CustomerID:
		return false
	case f.UserID > 0 && a.UserID != f.UserID:
		return false
	case !f.StartAfter.IsZero() && a.End.Before(f.StartAfter):
		return false
	case !f.EndBefore.IsZero() && a.Start.After(f.EndBefore):
		return false
	}
	return true
}

func canonical(a appointment.Appointment) appointment.Appointment {
	a.Start, a.End = a.Start.UTC(), a.End.UTC()
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return a
}
