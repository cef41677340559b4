// Package watcher tracks the active user's next appointment on a fixed tick.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/events"
	"github.com/javiermolinar/rendezvous/internal/session"
)

// Defaults.
const (
	DefaultInterval = time.Second
	DefaultHorizon  = 15 * time.Minute
)

// Source lists the appointments ongoing at from or starting within horizon,
// and finds the first one starting after from.
type Source interface {
	Upcoming(ctx context.Context, sess *session.Session, from time.Time, horizon time.Duration) ([]appointment.Appointment, error)
	Next(ctx context.Context, sess *session.Session, from time.Time) (appointment.Appointment, bool, error)
}

// Upcoming is the watched appointment as of the last tick.
type Upcoming struct {
	Appointment appointment.Appointment
	Ongoing     bool
	Remaining   time.Duration // until start, or until end when ongoing
}

// Countdown renders Remaining as MM:SS, with an hours field for ongoing
// appointments that have at least an hour left.
func (u Upcoming) Countdown() string {
	total := int(u.Remaining / time.Second)
	if total < 0 {
		total = 0
	}
	secs := total % 86400
	hours := secs / 3600
	secs %= 3600
	minutes := secs / 60
	secs %= 60

	if u.Ongoing && total >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the tick interval. Ticks run on whole seconds: shorter
// intervals become one second and fractions are dropped.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = max(d.Truncate(time.Second), time.Second)
		}
	}
}

// WithHorizon sets how far ahead appointments are watched.
func WithHorizon(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.horizon = d
		}
	}
}

// WithRescan keeps an otherwise idle watcher looking for appointments every
// d, so bookings made by other processes are picked up. Without it the
// watcher stops once nothing is left to wait for.
func WithRescan(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.rescan = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// OnNotify is called once per appointment when it first enters the horizon.
func OnNotify(fn func(ctx context.Context, u Upcoming)) Option {
	return func(w *Watcher) { w.notify = fn }
}

// OnTick is called after every tick. ok is false when nothing is watched.
func OnTick(fn func(u Upcoming, ok bool)) Option {
	return func(w *Watcher) { w.onTick = fn }
}

// Watcher ticks on a cron schedule while there is something to watch and
// stops itself otherwise. When the next appointment is still beyond the
// horizon, ticks only check the clock until it comes within range.
// A tick never overlaps a previous one.
type Watcher struct {
	src      Source
	sess     *session.Session
	interval time.Duration
	horizon  time.Duration
	rescan   time.Duration
	now      func() time.Time
	log      zerolog.Logger
	notify   func(ctx context.Context, u Upcoming)
	onTick   func(u Upcoming, ok bool)

	mu        sync.Mutex
	cron      *cron.Cron
	running   bool
	current   *Upcoming
	watchedID int64
	notified  bool
	wakeAt    time.Time // zero unless waiting for an appointment to come in range
}

// New creates a stopped Watcher for sess.
func New(src Source, sess *session.Session, opts ...Option) *Watcher {
	w := &Watcher{
		src:      src,
		sess:     sess,
		interval: DefaultInterval,
		horizon:  DefaultHorizon,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	logger := cronLogger{w.log}
	w.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	w.cron.Schedule(cron.Every(w.interval), cron.FuncJob(func() {
		w.Tick(context.Background())
	}))
	return w
}

// Start begins ticking. It is a no-op when already running.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.cron.Start()
	w.log.Debug().Dur("interval", w.interval).Msg("upcoming watcher started")
}

// Stop halts ticking and waits for a running tick to finish.
func (w *Watcher) Stop() {
	ctx := w.halt()
	<-ctx.Done()
}

func (w *Watcher) halt() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return closedContext()
	}
	w.running = false
	w.log.Debug().Msg("upcoming watcher stopped")
	return w.cron.Stop()
}

// Running reports whether the watcher is ticking.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Current returns the state of the last tick.
func (w *Watcher) Current() (Upcoming, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return Upcoming{}, false
	}
	return *w.current, true
}

// Tick recomputes the watched appointment once. Ticks that find no user, or
// no appointment at all ahead, stop the watcher.
func (w *Watcher) Tick(ctx context.Context) {
	if w.sess == nil || !w.sess.LoggedIn() {
		w.idle()
		return
	}

	now := w.now()
	if w.waiting(now) {
		if w.onTick != nil {
			w.onTick(Upcoming{}, false)
		}
		return
	}

	appts, err := w.src.Upcoming(ctx, w.sess, now, w.horizon)
	if err != nil {
		w.log.Warn().Err(err).Msg("loading upcoming appointments")
		return
	}
	if len(appts) == 0 {
		w.wait(ctx, now)
		return
	}

	next := appts[0]
	u := Upcoming{Appointment: next, Remaining: next.Start.Sub(now)}
	if !now.Before(next.Start) {
		u.Ongoing = true
		u.Remaining = next.End.Sub(now)
	}

	w.mu.Lock()
	if next.ID != w.watchedID {
		w.watchedID = next.ID
		w.notified = false
	}
	fire := !w.notified
	w.notified = true
	w.current = &u
	w.wakeAt = time.Time{}
	w.mu.Unlock()

	if fire {
		w.log.Info().
			Int64("appointment_id", next.ID).
			Time("start", next.Start).
			Msg("appointment is coming up")
		if w.notify != nil {
			w.notify(ctx, u)
		}
	}
	if w.onTick != nil {
		w.onTick(u, true)
	}
}

// waiting reports whether a previous tick scheduled the next look after now.
func (w *Watcher) waiting(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.wakeAt.IsZero() && now.Before(w.wakeAt)
}

// wait handles a tick with nothing in the horizon: it keeps ticking until the
// next appointment comes within range, or stops when there is none.
func (w *Watcher) wait(ctx context.Context, now time.Time) {
	next, ok, err := w.src.Next(ctx, w.sess, now)
	if err != nil {
		w.log.Warn().Err(err).Msg("loading next appointment")
		return
	}

	var wake time.Time
	if ok {
		wake = next.Start.Add(-w.horizon)
	}
	if w.rescan > 0 {
		if r := now.Add(w.rescan); wake.IsZero() || r.Before(wake) {
			wake = r
		}
	}
	if wake.IsZero() {
		w.idle()
		return
	}

	w.mu.Lock()
	w.current = nil
	w.watchedID = 0
	w.notified = false
	w.wakeAt = wake
	w.mu.Unlock()

	w.log.Debug().Time("wake_at", wake).Msg("nothing upcoming yet")
	if w.onTick != nil {
		w.onTick(Upcoming{}, false)
	}
}

func (w *Watcher) idle() {
	w.mu.Lock()
	w.current = nil
	w.watchedID = 0
	w.notified = false
	w.wakeAt = time.Time{}
	w.mu.Unlock()

	// Called from inside a tick, so don't wait for it.
	w.halt()
	if w.onTick != nil {
		w.onTick(Upcoming{}, false)
	}
}

// Handle follows appointment changes: any change restarts a stopped
// watcher and makes the next tick look again, and a change to the watched
// appointment re-arms its notification.
func (w *Watcher) Handle(_ context.Context, ev events.Event) {
	w.mu.Lock()
	w.wakeAt = time.Time{}
	if ev.Appointment.ID == w.watchedID || ev.Previous.ID == w.watchedID {
		w.watchedID = 0
		w.notified = false
	}
	w.mu.Unlock()

	if w.sess != nil && w.sess.LoggedIn() {
		w.Start()
	}
}

func closedContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
