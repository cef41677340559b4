package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/db"
	"github.com/javiermolinar/rendezvous/internal/directory"
	"github.com/javiermolinar/rendezvous/internal/scheduling"
	"github.com/javiermolinar/rendezvous/internal/session"
)

func (a *App) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [database_path]",
		Short: "Import appointments from another database",
		Long: `Import customers, contacts, users and appointments from another
rendezvous SQLite database into the current store.

Directory entries are matched by name and created when missing. Every
appointment is booked again, so business hours and customer conflicts are
checked; rejected ones are listed and skipped. Requires an admin user.

Example:
  rendezvous import /path/to/other.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			if !sess.IsAdmin() {
				return fmt.Errorf("import requires an admin user")
			}

			sourcePath, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			if a.config.Storage.Driver == "sqlite" {
				destPath, err := resolvePath(a.config.Storage.DBPath)
				if err != nil {
					return err
				}
				if sourcePath == destPath {
					return fmt.Errorf("source database matches current database")
				}
			}

			info, err := os.Stat(sourcePath)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("source database does not exist: %s", sourcePath)
				}
				return fmt.Errorf("checking source database: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("source database path is a directory: %s", sourcePath)
			}

			source, err := db.New(sourcePath)
			if err != nil {
				return fmt.Errorf("opening source database: %w", err)
			}
			defer func() { _ = source.Close() }()

			imp := importer{svc: a.svc, dest: a.store, dir: a.dir, sess: sess, out: a.out}
			count, skipped, err := imp.run(ctx, source)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Imported %d appointments from %s", count, sourcePath)
			if skipped > 0 {
				fmt.Fprintf(a.out, " (%d skipped)", skipped)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}

	return cmd
}

// importer books the appointments of a source store into the service's store.
type importer struct {
	svc  *scheduling.Service
	dest db.Store
	dir  *directory.Cache
	sess *session.Session
	out  io.Writer

	customers map[int64]int64
	contacts  map[int64]int64
	users     map[int64]int64
}

func (imp *importer) run(ctx context.Context, source db.Store) (imported, skipped int, err error) {
	if err := imp.mapDirectory(ctx, source); err != nil {
		return 0, 0, err
	}

	appts, err := source.ListAppointments(ctx, appointment.Filter{})
	if err != nil {
		return 0, 0, fmt.Errorf("listing source appointments: %w", err)
	}

	for _, a := range appts {
		f := a.Fields
		f.CustomerID = imp.customers[a.CustomerID]
		f.ContactID = imp.contacts[a.ContactID]
		f.UserID = imp.users[a.UserID]

		if _, err := imp.svc.Create(ctx, imp.sess, f); err != nil {
			if appointment.Kind(err) == "persistence" {
				return imported, skipped, fmt.Errorf("importing appointment %q: %w", a.Title, err)
			}
			fmt.Fprintf(imp.out, "%s #%d %s %s: %v\n",
				formatMuted("skipped"), a.ID, a.Title, a.Start.Format(dateLayout), err)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

// mapDirectory translates source ids to destination ids by name, adding the
// entries the destination lacks.
func (imp *importer) mapDirectory(ctx context.Context, source db.Store) error {
	imp.customers = make(map[int64]int64)
	imp.contacts = make(map[int64]int64)
	imp.users = make(map[int64]int64)

	srcCustomers, err := source.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("listing source customers: %w", err)
	}
	known, err := imp.dir.Customers(ctx)
	if err != nil {
		return fmt.Errorf("listing customers: %w", err)
	}
	for _, c := range srcCustomers {
		id, ok := findByName(known, c.Name, func(c appointment.Customer) (string, int64) { return c.Name, c.ID })
		if !ok {
			if id, err = imp.dest.AddCustomer(ctx, c.Name); err != nil {
				return fmt.Errorf("adding customer %q: %w", c.Name, err)
			}
		}
		imp.customers[c.ID] = id
	}

	srcContacts, err := source.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("listing source contacts: %w", err)
	}
	knownContacts, err := imp.dir.Contacts(ctx)
	if err != nil {
		return fmt.Errorf("listing contacts: %w", err)
	}
	for _, c := range srcContacts {
		id, ok := findByName(knownContacts, c.Name, func(c appointment.Contact) (string, int64) { return c.Name, c.ID })
		if !ok {
			if id, err = imp.dest.AddContact(ctx, c.Name, c.Email); err != nil {
				return fmt.Errorf("adding contact %q: %w", c.Name, err)
			}
		}
		imp.contacts[c.ID] = id
	}

	srcUsers, err := source.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing source users: %w", err)
	}
	knownUsers, err := imp.dir.Users(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range srcUsers {
		id, ok := findByName(knownUsers, u.Name, func(u appointment.User) (string, int64) { return u.Name, u.ID })
		if !ok {
			if id, err = imp.dest.AddUser(ctx, u.Name, u.Admin); err != nil {
				return fmt.Errorf("adding user %q: %w", u.Name, err)
			}
		}
		imp.users[u.ID] = id
	}

	imp.dir.Refresh()
	return nil
}

func findByName[T any](items []T, name string, key func(T) (string, int64)) (int64, bool) {
	for _, it := range items {
		n, id := key(it)
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return 0, false
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	return absPath, nil
}
