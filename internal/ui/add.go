package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

// fieldFlags are the appointment flags shared by add and update.
type fieldFlags struct {
	title       string
	description string
	location    string
	kind        string
	date        string
	start       string
	end         string
	duration    time.Duration
	customer    string
	contact     string
	forUser     string
}

func (ff *fieldFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&ff.title, "title", "", "Title (at least 3 characters)")
	f.StringVar(&ff.description, "description", "", "Free text description")
	f.StringVar(&ff.location, "location", "", "Where the appointment takes place")
	f.StringVar(&ff.kind, "type", "", "Appointment type, e.g. Consultation")
	f.StringVar(&ff.date, "date", "", "Date (YYYY-MM-DD, today, tomorrow, monday, next-week...)")
	f.StringVar(&ff.start, "start", "", "Start time (HH:MM)")
	f.StringVar(&ff.end, "end", "", "End time (HH:MM); earlier than start means the next day")
	f.DurationVar(&ff.duration, "duration", 0, "Duration instead of --end, e.g. 45m")
	f.StringVar(&ff.customer, "customer", "", "Customer id or name")
	f.StringVar(&ff.contact, "contact", "", "Contact id or name")
	f.StringVar(&ff.forUser, "for", "", "Book for another user (admins only)")
	cmd.MarkFlagsMutuallyExclusive("end", "duration")
}

// applyFields overlays the flags the user set onto f. now anchors relative dates.
func (a *App) applyFields(ctx context.Context, cmd *cobra.Command, ff *fieldFlags, f appointment.Fields, now time.Time) (appointment.Fields, error) {
	changed := cmd.Flags().Changed
	if changed("title") {
		f.Title = ff.title
	}
	if changed("description") {
		f.Description = ff.description
	}
	if changed("location") {
		f.Location = ff.location
	}
	if changed("type") {
		f.Type = ff.kind
	}

	var err error
	if changed("customer") {
		if f.CustomerID, err = a.customerID(ctx, ff.customer); err != nil {
			return f, err
		}
	}
	if changed("contact") {
		if f.ContactID, err = a.contactID(ctx, ff.contact); err != nil {
			return f, err
		}
	}
	if changed("for") {
		u, ok, err := a.dir.UserByName(ctx, ff.forUser)
		if err != nil {
			return f, fmt.Errorf("loading users: %w", err)
		}
		if !ok {
			return f, fmt.Errorf("unknown user %q", ff.forUser)
		}
		f.UserID = u.ID
	}

	return a.applyTimes(cmd, ff, f, now)
}

func (a *App) applyTimes(cmd *cobra.Command, ff *fieldFlags, f appointment.Fields, now time.Time) (appointment.Fields, error) {
	changed := cmd.Flags().Changed
	loc := a.svc.Location()
	now = now.In(loc)

	duration := f.Duration()
	if duration <= 0 {
		duration = a.svc.Policy().MinDuration()
	}

	if changed("date") || changed("start") {
		day := dateutil.TruncateToDay(now)
		if !f.Start.IsZero() {
			day = dateutil.TruncateToDay(f.Start.In(loc))
		}
		if changed("date") {
			d, err := dateutil.ParseRelativeDate(ff.date, now)
			if err != nil {
				return f, fmt.Errorf("--date: %w", err)
			}
			day = d
		}

		hour, minute := 0, 0
		if !f.Start.IsZero() {
			hour, minute = f.Start.In(loc).Hour(), f.Start.In(loc).Minute()
		}
		if changed("start") {
			h, m, err := dateutil.ParseClock(ff.start)
			if err != nil {
				return f, fmt.Errorf("--start: %w", err)
			}
			hour, minute = h, m
		}
		f.Start = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		f.End = f.Start.Add(duration)
	}

	switch {
	case changed("duration"):
		f.End = f.Start.Add(ff.duration)
	case changed("end"):
		h, m, err := dateutil.ParseClock(ff.end)
		if err != nil {
			return f, fmt.Errorf("--end: %w", err)
		}
		s := f.Start.In(loc)
		end := time.Date(s.Year(), s.Month(), s.Day(), h, m, 0, 0, loc)
		if !end.After(s) {
			end = end.AddDate(0, 0, 1)
		}
		f.End = end
	}
	return f, nil
}

// customerID resolves an id or a case-insensitive name.
func (a *App) customerID(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	all, err := a.dir.Customers(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading customers: %w", err)
	}
	for _, c := range all {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown customer %q", ref)
}

// contactID resolves an id or a case-insensitive name.
func (a *App) contactID(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	all, err := a.dir.Contacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading contacts: %w", err)
	}
	for _, c := range all {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown contact %q", ref)
}

func (a *App) addCmd() *cobra.Command {
	ff := &fieldFlags{}

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Book a new appointment",
		Long: `Book a new appointment for a customer.

The end is rounded up to the minimum duration, and the whole appointment
must fit inside business hours unless testing mode is on.`,
		Example: `  rendezvous add "Quarterly review" --customer=Acme --contact=Jane \
    --type=Review --location=Office --date=tomorrow --start=09:00 --end=10:00`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				_ = cmd.Flags().Set("title", args[0])
			}

			f, err := a.applyFields(ctx, cmd, ff, appointment.Fields{}, time.Now())
			if err != nil {
				return err
			}
			created, err := a.svc.Create(ctx, sess, f)
			if err != nil {
				return displayError{err}
			}

			fmt.Fprintf(a.out, "%s ", formatSuccess("Booked"))
			printDetail(a.out, created, names{ctx, a.dir})
			return nil
		},
	}
	ff.bind(cmd)
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func (a *App) updateCmd() *cobra.Command {
	ff := &fieldFlags{}

	cmd := &cobra.Command{
		Use:   "update [appointment-id]",
		Short: "Change an appointment",
		Long: `Change an appointment. Only the flags you pass are changed.

Moving the start keeps the duration unless --end or --duration is given.
If the appointment was cancelled meanwhile, it is booked again.`,
		Example: `  rendezvous update 42 --start=11:00
  rendezvous update 42 --date=next-monday --duration=90m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			existing, err := a.svc.Get(ctx, id)
			if err != nil {
				return displayError{err}
			}

			f, err := a.applyFields(ctx, cmd, ff, existing.Fields, time.Now())
			if err != nil {
				return err
			}
			updated, err := a.svc.Update(ctx, sess, existing, f)
			if err != nil {
				return displayError{err}
			}

			switch {
			case updated.ID != existing.ID:
				fmt.Fprintf(a.out, "%s ", formatSuccess("Booked again as"))
			case updated.UpdatedAt.Equal(existing.UpdatedAt):
				fmt.Fprintf(a.out, "%s ", formatMuted("Unchanged"))
			default:
				fmt.Fprintf(a.out, "%s ", formatSuccess("Updated"))
			}
			printDetail(a.out, updated, names{ctx, a.dir})
			return nil
		},
	}
	ff.bind(cmd)
	return cmd
}

func (a *App) duplicateCmd() *cobra.Command {
	var date, start string

	cmd := &cobra.Command{
		Use:   "duplicate [appointment-id]",
		Short: "Copy an appointment to another time",
		Long: `Copy an appointment to a new start time, keeping its duration.

Unless you are an admin, the copy is booked for you.`,
		Example: `  rendezvous duplicate 42 --date=next-week --start=09:00`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			existing, err := a.svc.Get(ctx, id)
			if err != nil {
				return displayError{err}
			}

			loc := a.svc.Location()
			day, err := dateutil.ParseRelativeDate(date, time.Now().In(loc))
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			h, m, err := dateutil.ParseClock(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			at := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)

			copied, err := a.svc.Duplicate(ctx, sess, existing, at)
			if err != nil {
				return displayError{err}
			}
			fmt.Fprintf(a.out, "%s ", formatSuccess("Booked copy"))
			printDetail(a.out, copied, names{ctx, a.dir})
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date of the copy (default: today)")
	cmd.Flags().StringVar(&start, "start", "", "Start time of the copy (HH:MM, required)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid appointment ID %q", s)
	}
	return id, nil
}
