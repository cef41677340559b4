// Package ui implements the rendezvous command line.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/javiermolinar/rendezvous/internal/config"
	"github.com/javiermolinar/rendezvous/internal/db"
	"github.com/javiermolinar/rendezvous/internal/directory"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/guard"
	"github.com/javiermolinar/rendezvous/internal/logx"
	"github.com/javiermolinar/rendezvous/internal/policy"
	"github.com/javiermolinar/rendezvous/internal/scheduling"
	"github.com/javiermolinar/rendezvous/internal/session"
	"github.com/javiermolinar/rendezvous/internal/tracing"
	"github.com/javiermolinar/rendezvous/internal/tz"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// App holds the CLI application state.
type App struct {
	config  *config.Config
	cfgPath string
	root    *cobra.Command
	out     io.Writer

	userName string // --user
	asName   string // --as
	debug    bool
	noColor  bool

	log     *logx.Logger
	store   db.Store
	dir     *directory.Cache
	bus     *events.Bus
	svc     *scheduling.Service
	closers []func(context.Context) error
}

// NewApp creates a new CLI application for cfg, loaded from cfgPath.
func NewApp(cfg *config.Config, cfgPath string) *App {
	a := &App{config: cfg, cfgPath: cfgPath, out: os.Stdout}

	a.root = &cobra.Command{
		Use:   "rendezvous",
		Short: "Appointment scheduling for customer meetings",
		Long: `Rendezvous books appointments between your agents and their customers.

It keeps appointments inside business hours, refuses double bookings for
a customer, and watches for the next appointment of the active user.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.noColor {
				DisableColor()
			}
			if !cmd.Flags().Changed("config") {
				return nil
			}
			loaded, err := config.LoadFrom(a.cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.config = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCalendar(cmd.Context())
		},
	}

	pf := a.root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", cfgPath, "Config file (.toml, .yaml or .yml)")
	pf.StringVarP(&a.userName, "user", "u", os.Getenv("RENDEZVOUS_USER"), "Active user name (default $RENDEZVOUS_USER)")
	pf.StringVar(&a.asName, "as", "", "Act as another user (admins only)")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable color output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.configCmd())
	a.root.AddCommand(a.addCmd())
	a.root.AddCommand(a.updateCmd())
	a.root.AddCommand(a.cancelCmd())
	a.root.AddCommand(a.duplicateCmd())
	a.root.AddCommand(a.listCmd())
	a.root.AddCommand(a.monthCmd())
	a.root.AddCommand(a.calendarCmd())
	a.root.AddCommand(a.watchCmd())
	a.root.AddCommand(a.testAlarmCmd())
	a.root.AddCommand(a.customerCmd())
	a.root.AddCommand(a.contactCmd())
	a.root.AddCommand(a.userCmd())
	a.root.AddCommand(a.importCmd())

	return a
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "rendezvous %s (commit: %s)\n", Version, Commit)
		},
	}
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

// ExecuteContext runs the CLI application with ctx.
func (a *App) ExecuteContext(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

// SetArgs overrides os.Args for the next Execute.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// SetOutput redirects command output.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
	a.root.SetOut(w)
	a.root.SetErr(w)
}

// Close releases everything ensureService opened, newest first.
func (a *App) Close() error {
	ctx := context.Background()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// ensureService lazily wires storage, events, locking and tracing into a
// scheduling service.
func (a *App) ensureService(ctx context.Context) error {
	if a.svc != nil {
		return nil
	}
	cfg := a.config

	logCfg := cfg.LogxConfig()
	if a.debug {
		logCfg.Level = "debug"
	}
	log, err := logx.New(logCfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.log = log
	a.onClose(func(context.Context) error { return log.Close() })

	shutdown, err := tracing.Setup(ctx, cfg.TracingSetup())
	if err != nil {
		return err
	}
	a.onClose(shutdown)

	dsn := cfg.Storage.DBPath
	if cfg.Storage.Driver == "postgres" {
		dsn = cfg.Storage.PostgresURL
	} else if cfg.Storage.Driver == "sqlite" {
		if err := ensureDir(dsn); err != nil {
			return err
		}
	}
	store, err := db.Open(ctx, cfg.Storage.Driver, dsn)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.onClose(func(context.Context) error { return store.Close() })

	norm, err := tz.Load(cfg.Schedule.DisplayTimezone)
	if err != nil {
		return err
	}
	pc, err := cfg.PolicyConfig()
	if err != nil {
		return err
	}
	pol, err := policy.New(pc)
	if err != nil {
		return err
	}

	a.bus = events.NewBus(log.With().Str("component", "events").Logger())
	a.onClose(func(context.Context) error { return a.bus.Close() })
	if brokers := events.SplitBrokers(cfg.Events.KafkaBrokers); len(brokers) > 0 {
		a.bus.AddSink(events.NewKafkaSink(brokers, cfg.Events.KafkaTopic))
	}

	var locker guard.Locker = guard.NewLocal()
	if addr := strings.TrimSpace(cfg.Guard.RedisAddr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		a.onClose(func(context.Context) error { return rdb.Close() })
		locker = guard.NewRedis(rdb, cfg.GuardTTL(), "")
	}

	a.dir = directory.New(store)
	a.svc = scheduling.New(store, pol, norm,
		scheduling.WithDirectory(a.dir),
		scheduling.WithLocker(locker),
		scheduling.WithBus(a.bus),
		scheduling.WithLogger(log.With().Str("component", "scheduling").Logger()),
	)
	return nil
}

// session resolves --user and --as into a session.
func (a *App) session(ctx context.Context) (*session.Session, error) {
	name := strings.TrimSpace(a.userName)
	if name == "" {
		return nil, errors.New("no active user: pass --user or set RENDEZVOUS_USER")
	}
	user, ok, err := a.dir.UserByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("unknown user %q", name)
	}

	sess := session.New(user)
	if as := strings.TrimSpace(a.asName); as != "" {
		other, ok, err := a.dir.UserByName(ctx, as)
		if err != nil {
			return nil, fmt.Errorf("loading users: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("unknown user %q", as)
		}
		if err := sess.ActAs(other); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// prepare wires the service and resolves the session.
func (a *App) prepare(ctx context.Context) (*session.Session, error) {
	if err := a.ensureService(ctx); err != nil {
		return nil, err
	}
	return a.session(ctx)
}

func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
