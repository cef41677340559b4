package ui

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/javiermolinar/rendezvous/internal/config"
)

type cliEnv struct {
	cfg     *config.Config
	cfgPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("RENDEZVOUS_USER", "")
	DisableColor()
	t.Cleanup(EnableColor)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DBPath = filepath.Join(dir, "rendezvous.db")
	cfg.Schedule.DisplayTimezone = "UTC"
	cfg.Schedule.BusinessTimezone = "UTC"
	cfg.Log.Level = "error"
	return &cliEnv{cfg: cfg, cfgPath: filepath.Join(dir, "config.toml")}
}

// run executes one command line against a fresh App sharing the database.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := NewApp(e.cfg, e.cfgPath)
	defer func() { _ = app.Close() }()

	var out bytes.Buffer
	app.SetOutput(&out)
	app.SetArgs(args)
	err := app.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func (e *cliEnv) seed(t *testing.T) {
	t.Helper()
	e.mustRun(t, "user", "add", "admin", "--admin")
	e.mustRun(t, "user", "add", "alice")
	e.mustRun(t, "customer", "add", "Lady Gaga")
	e.mustRun(t, "contact", "add", "Anika Costa", "--email", "acosta@company.com")
}

func bookArgs(user, title, start string) []string {
	return []string{
		"--user", user, "add", title,
		"--location", "Phoenix, Arizona",
		"--type", "Planning Session",
		"--date", "2030-03-04",
		"--start", start,
		"--duration", "1h",
		"--customer", "lady gaga",
		"--contact", "anika costa",
	}
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)
	out := e.mustRun(t, "version")
	if want := "rendezvous dev (commit: none)"; !strings.Contains(out, want) {
		t.Errorf("version output = %q, want %q", out, want)
	}
}

func TestDirectoryCommands(t *testing.T) {
	e := newCLIEnv(t)

	if out := e.mustRun(t, "user", "add", "admin", "--admin"); !strings.Contains(out, "Added admin #1: admin") {
		t.Errorf("user add = %q", out)
	}
	e.mustRun(t, "user", "add", "alice")
	out := e.mustRun(t, "user", "list")
	if !strings.Contains(out, "admin") || !strings.Contains(out, "alice") {
		t.Errorf("user list = %q", out)
	}

	e.mustRun(t, "customer", "add", "Lady Gaga")
	if out := e.mustRun(t, "customer", "list"); !strings.Contains(out, "Lady Gaga") {
		t.Errorf("customer list = %q", out)
	}

	e.mustRun(t, "contact", "add", "Anika Costa", "--email", "acosta@company.com")
	if out := e.mustRun(t, "contact", "list"); !strings.Contains(out, "acosta@company.com") {
		t.Errorf("contact list = %q", out)
	}
}

func TestBookingLifecycle(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(t)

	out := e.mustRun(t, bookArgs("alice", "Kickoff", "09:00")...)
	for _, want := range []string{"Booked", "#1 Kickoff", "2030-03-04 09:00-10:00 (1h)", "Lady Gaga", "Anika Costa", "alice"} {
		if !strings.Contains(out, want) {
			t.Errorf("add output missing %q:\n%s", want, out)
		}
	}

	_, err := e.run(t, bookArgs("alice", "Overlap", "09:30")...)
	if err == nil {
		t.Fatal("overlapping booking should fail")
	}
	if want := "conflict: customer is busy 2030-03-04 09:00-10:00"; !strings.Contains(err.Error(), want) {
		t.Errorf("conflict error = %q, want %q", err, want)
	}

	out = e.mustRun(t, "--user", "alice", "update", "1", "--start", "11:00")
	if !strings.Contains(out, "Updated") || !strings.Contains(out, "11:00-12:00") {
		t.Errorf("update output = %q", out)
	}
	out = e.mustRun(t, "--user", "alice", "update", "1", "--start", "11:00")
	if !strings.Contains(out, "Unchanged") {
		t.Errorf("repeated update should be a no-op: %q", out)
	}

	out = e.mustRun(t, "--user", "alice", "duplicate", "1", "--date", "2030-03-05", "--start", "14:00")
	if !strings.Contains(out, "Booked copy") || !strings.Contains(out, "2030-03-05 14:00-15:00") {
		t.Errorf("duplicate output = %q", out)
	}

	out = e.mustRun(t, "--user", "admin", "list", "--from", "2030-03-01", "--days", "10")
	if !strings.Contains(out, "Kickoff") || strings.Count(out, "Kickoff") != 2 {
		t.Errorf("admin list = %q", out)
	}

	out = e.mustRun(t, "--user", "alice", "cancel", "1")
	if !strings.Contains(out, "Cancelled appointment #1: Kickoff") {
		t.Errorf("cancel output = %q", out)
	}
	out = e.mustRun(t, "--user", "alice", "list", "--from", "2030-03-04", "--days", "1")
	if !strings.Contains(out, "No appointments found") {
		t.Errorf("list after cancel = %q", out)
	}
}

func TestBookingOutsideBusinessHours(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(t)

	_, err := e.run(t, bookArgs("alice", "Too early", "06:00")...)
	if err == nil {
		t.Fatal("booking before opening should fail")
	}
	if !strings.Contains(err.Error(), "appointment rejected:") {
		t.Errorf("error = %q", err)
	}
}

func TestMonthCommand(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(t)
	e.mustRun(t, bookArgs("alice", "Kickoff", "09:00")...)

	out := e.mustRun(t, "--user", "alice", "month", "--date", "2030-03-04")
	if !strings.Contains(out, "March 2030") || !strings.Contains(out, " 4(1)") {
		t.Errorf("month output = %q", out)
	}
}

func TestSessionErrors(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no user", []string{"list"}, "no active user"},
		{"unknown user", []string{"--user", "bob", "list"}, `unknown user "bob"`},
		{"non-admin acting", []string{"--user", "alice", "--as", "admin", "list"}, "only admins can act as another user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
