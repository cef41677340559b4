package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/conflict"
)

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	timeArg:     func(t time.Time) any { return t.UTC() },
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and runs migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return p, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// ListAppointments returns appointments matching f ordered by start.
func (p *Postgres) ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	query, args := postgresDialect.listQuery(f)
	return p.query(ctx, query, args...)
}

// InsertAppointment stores a new appointment and returns its ID.
func (p *Postgres) InsertAppointment(ctx context.Context, a appointment.Appointment) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			title, description, location, type, start_at, end_at,
			created_at, created_by, updated_at, updated_by, customer_id, user_id, contact_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, a.Title, a.Description, a.Location, a.Type, a.Start.UTC(), a.End.UTC(),
		a.CreatedAt.UTC(), a.CreatedBy, a.UpdatedAt.UTC(), a.UpdatedBy, a.CustomerID, a.UserID, a.ContactID,
	).Scan(&id)
	if isExclusionViolation(err) {
		return 0, p.conflictFor(ctx, a, 0)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting appointment: %w", err)
	}
	return id, nil
}

// UpdateAppointment rewrites every mutable column of a.
func (p *Postgres) UpdateAppointment(ctx context.Context, a appointment.Appointment) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE appointments
		SET title = $1, description = $2, location = $3, type = $4, start_at = $5, end_at = $6,
		    updated_at = $7, updated_by = $8, customer_id = $9, user_id = $10, contact_id = $11
		WHERE id = $12
	`, a.Title, a.Description, a.Location, a.Type, a.Start.UTC(), a.End.UTC(),
		a.UpdatedAt.UTC(), a.UpdatedBy, a.CustomerID, a.UserID, a.ContactID, a.ID)
	if isExclusionViolation(err) {
		return false, p.conflictFor(ctx, a, a.ID)
	}
	if err != nil {
		return false, fmt.Errorf("updating appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAppointment removes an appointment. Reports false if it did not exist.
func (p *Postgres) DeleteAppointment(ctx context.Context, id int64) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether an appointment with id is stored.
func (p *Postgres) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking appointment: %w", err)
	}
	return ok, nil
}

// ListCustomers returns every customer ordered by ID.
func (p *Postgres) ListCustomers(ctx context.Context) ([]appointment.Customer, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Customer, error) {
		var c appointment.Customer
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning customers: %w", err)
	}
	return out, nil
}

// ListContacts returns every contact ordered by ID.
func (p *Postgres) ListContacts(ctx context.Context) ([]appointment.Contact, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, email FROM contacts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Contact, error) {
		var c appointment.Contact
		err := row.Scan(&c.ID, &c.Name, &c.Email)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning contacts: %w", err)
	}
	return out, nil
}

// ListUsers returns every user ordered by ID.
func (p *Postgres) ListUsers(ctx context.Context) ([]appointment.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, admin FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.User, error) {
		var u appointment.User
		err := row.Scan(&u.ID, &u.Name, &u.Admin)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return out, nil
}

// AddCustomer inserts a customer and returns its ID.
func (p *Postgres) AddCustomer(ctx context.Context, name string) (int64, error) {
	return p.insert(ctx, "customer", `INSERT INTO customers (name) VALUES ($1) RETURNING id`, name)
}

// AddContact inserts a contact and returns its ID.
func (p *Postgres) AddContact(ctx context.Context, name, email string) (int64, error) {
	return p.insert(ctx, "contact", `INSERT INTO contacts (name, email) VALUES ($1, $2) RETURNING id`, name, email)
}

// AddUser inserts a user and returns its ID.
func (p *Postgres) AddUser(ctx context.Context, name string, admin bool) (int64, error) {
	return p.insert(ctx, "user", `INSERT INTO users (name, admin) VALUES ($1, $2) RETURNING id`, name, admin)
}

func (p *Postgres) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	var id int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting %s: %w", what, err)
	}
	return id, nil
}

// conflictFor builds the ConflictError after the exclusion constraint fired.
// The rows that blocked the write may already be gone; the requested
// interval then stands in as the block.
func (p *Postgres) conflictFor(ctx context.Context, a appointment.Appointment, excludeID int64) error {
	query, args := postgresDialect.overlapQuery(a.CustomerID, a.Start, a.End, excludeID)
	conflicts, err := p.query(ctx, query, args...)
	if err != nil || len(conflicts) == 0 {
		return &appointment.ConflictError{BlockStart: a.Start.UTC(), BlockEnd: a.End.UTC()}
	}
	start, end := conflict.Block(conflicts)
	return &appointment.ConflictError{BlockStart: start, BlockEnd: end, Conflicts: conflicts}
}

func (p *Postgres) query(ctx context.Context, query string, args ...any) ([]appointment.Appointment, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Appointment, error) {
		var a appointment.Appointment
		err := row.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Location,
			&a.Type,
			&a.Start,
			&a.End,
			&a.CreatedAt,
			&a.CreatedBy,
			&a.UpdatedAt,
			&a.UpdatedBy,
			&a.CustomerID,
			&a.UserID,
			&a.ContactID,
		)
		a.Start, a.End = a.Start.UTC(), a.End.UTC()
		a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning appointments: %w", err)
	}
	return out, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
