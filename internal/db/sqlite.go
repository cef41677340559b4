// Package db provides the SQLite, PostgreSQL and in-memory appointment stores.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/conflict"
)

// timeLayout is fixed width so that lexical order in SQLite matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	timeArg:     func(t time.Time) any { return formatTime(t) },
}

// SQLite implements Store using SQLite.
type SQLite struct {
	db *sql.DB
}

// New creates a new SQLite store and runs migrations.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time keeps the overlap check and the write atomic.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ListAppointments returns appointments matching f ordered by start.
func (s *SQLite) ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	query, args := sqliteDialect.listQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSQLiteRows(rows)
}

// InsertAppointment stores a new appointment and returns its ID.
// Returns a *appointment.ConflictError if it overlaps an existing one.
func (s *SQLite) InsertAppointment(ctx context.Context, a appointment.Appointment) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkOverlapTx(ctx, tx, a.CustomerID, a.Start, a.End, 0); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO appointments (
			title, description, location, type, start_at, end_at,
			created_at, created_by, updated_at, updated_by, customer_id, user_id, contact_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		a.Title,
		a.Description,
		a.Location,
		a.Type,
		formatTime(a.Start),
		formatTime(a.End),
		formatTime(a.CreatedAt),
		a.CreatedBy,
		formatTime(a.UpdatedAt),
		a.UpdatedBy,
		a.CustomerID,
		a.UserID,
		a.ContactID,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

// UpdateAppointment rewrites every mutable column of a.
// Reports false if no row has a.ID.
func (s *SQLite) UpdateAppointment(ctx context.Context, a appointment.Appointment) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkOverlapTx(ctx, tx, a.CustomerID, a.Start, a.End, a.ID); err != nil {
		return false, err
	}

	query := `
		UPDATE appointments
		SET title = ?, description = ?, location = ?, type = ?, start_at = ?, end_at = ?,
		    updated_at = ?, updated_by = ?, customer_id = ?, user_id = ?, contact_id = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		a.Title,
		a.Description,
		a.Location,
		a.Type,
		formatTime(a.Start),
		formatTime(a.End),
		formatTime(a.UpdatedAt),
		a.UpdatedBy,
		a.CustomerID,
		a.UserID,
		a.ContactID,
		a.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating appointment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return true, nil
}

// DeleteAppointment removes an appointment. Reports false if it did not exist.
func (s *SQLite) DeleteAppointment(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting appointment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether an appointment with id is stored.
func (s *SQLite) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = ?)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking appointment: %w", err)
	}
	return ok, nil
}

// ListCustomers returns every customer ordered by ID.
func (s *SQLite) ListCustomers(ctx context.Context) ([]appointment.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []appointment.Customer
	for rows.Next() {
		var c appointment.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customers: %w", err)
	}
	return out, nil
}

// ListContacts returns every contact ordered by ID.
func (s *SQLite) ListContacts(ctx context.Context) ([]appointment.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM contacts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []appointment.Contact
	for rows.Next() {
		var c appointment.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contacts: %w", err)
	}
	return out, nil
}

// ListUsers returns every user ordered by ID.
func (s *SQLite) ListUsers(ctx context.Context) ([]appointment.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, admin FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []appointment.User
	for rows.Next() {
		var u appointment.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Admin); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return out, nil
}

// AddCustomer inserts a customer and returns its ID.
func (s *SQLite) AddCustomer(ctx context.Context, name string) (int64, error) {
	return s.insert(ctx, "customer", `INSERT INTO customers (name) VALUES (?)`, name)
}

// AddContact inserts a contact and returns its ID.
func (s *SQLite) AddContact(ctx context.Context, name, email string) (int64, error) {
	return s.insert(ctx, "contact", `INSERT INTO contacts (name, email) VALUES (?, ?)`, name, email)
}

// AddUser inserts a user and returns its ID.
func (s *SQLite) AddUser(ctx context.Context, name string, admin bool) (int64, error) {
	return s.insert(ctx, "user", `INSERT INTO users (name, admin) VALUES (?, ?)`, name, admin)
}

func (s *SQLite) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting %s: %w", what, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	return id, nil
}

// checkOverlapTx returns a *appointment.ConflictError when [start, end)
// overlaps another appointment of the customer.
func checkOverlapTx(ctx context.Context, tx *sql.Tx, customerID int64, start, end time.Time, excludeID int64) error {
	query, args := sqliteDialect.overlapQuery(customerID, start, end, excludeID)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("checking overlap: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conflicts, err := scanSQLiteRows(rows)
	if err != nil {
		return fmt.Errorf("checking overlap: %w", err)
	}
	if len(conflicts) == 0 {
		return nil
	}

	blockStart, blockEnd := conflict.Block(conflicts)
	return &appointment.ConflictError{BlockStart: blockStart, BlockEnd: blockEnd, Conflicts: conflicts}
}

func scanSQLiteRows(rows *sql.Rows) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for rows.Next() {
		var (
			a                                  appointment.Appointment
			startAt, endAt, createdAt, updated string
		)
		err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Location,
			&a.Type,
			&startAt,
			&endAt,
			&createdAt,
			&a.CreatedBy,
			&updated,
			&a.UpdatedBy,
			&a.CustomerID,
			&a.UserID,
			&a.ContactID,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning appointment: %w", err)
		}

		if err := parseTimes(
			timeField{"start", startAt, &a.Start},
			timeField{"end", endAt, &a.End},
			timeField{"created at", createdAt, &a.CreatedAt},
			timeField{"updated at", updated, &a.UpdatedAt},
		); err != nil {
			return nil, fmt.Errorf("appointment %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating appointments: %w", err)
	}
	return out, nil
}

type timeField struct {
	name string
	raw  string
	dst  *time.Time
}

func parseTimes(fields ...timeField) error {
	var errs []error
	for _, f := range fields {
		t, err := time.Parse(timeLayout, f.raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", f.name, err))
			continue
		}
		*f.dst = t
	}
	return errors.Join(errs...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
