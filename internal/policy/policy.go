// Package policy enforces business hours and minimum duration rules.
package policy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/javiermolinar/rendezvous/internal/dateutil"
)

// SlotDuration is the quantization unit for durations and pickers.
const SlotDuration = 5 * time.Minute

// Defaults.
const (
	DefaultOpening          = "08:00"
	DefaultBusinessHours    = 15
	DefaultMinDurationSlots = 4
	MaxMinDurationSlots     = 24
)

// ErrInvalidMinDuration is returned for a min duration outside 1..24 slots.
var ErrInvalidMinDuration = fmt.Errorf("min duration must be between 1 and %d slots", MaxMinDurationSlots)

// Config configures a Policy.
type Config struct {
	Opening          string         // "HH:MM" in Location
	BusinessHours    int            // one-hour slots after Opening
	MinDurationSlots int            // in SlotDuration units
	Location         *time.Location // business zone; nil means UTC
	Testing          bool
}

// Policy holds the active window and duration rules.
// Testing mode and min duration may change at runtime; changes only affect
// new validations.
type Policy struct {
	mu       sync.RWMutex
	openH    int
	openM    int
	hours    int
	minSlots int
	loc      *time.Location
	testing  bool
}

// New creates a Policy, filling zero values with defaults.
func New(cfg Config) (*Policy, error) {
	if cfg.Opening == "" {
		cfg.Opening = DefaultOpening
	}
	if cfg.BusinessHours == 0 {
		cfg.BusinessHours = DefaultBusinessHours
	}
	if cfg.MinDurationSlots == 0 {
		cfg.MinDurationSlots = DefaultMinDurationSlots
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	h, m, err := dateutil.ParseClock(cfg.Opening)
	if err != nil {
		return nil, fmt.Errorf("opening time: %w", err)
	}
	if cfg.BusinessHours < 1 || h*60+m+cfg.BusinessHours*60 > 24*60 {
		return nil, errors.New("business hours must end by midnight")
	}
	if err := checkMinSlots(cfg.MinDurationSlots); err != nil {
		return nil, err
	}

	return &Policy{
		openH:    h,
		openM:    m,
		hours:    cfg.BusinessHours,
		minSlots: cfg.MinDurationSlots,
		loc:      cfg.Location,
		testing:  cfg.Testing,
	}, nil
}

func checkMinSlots(n int) error {
	if n < 1 || n > MaxMinDurationSlots {
		return ErrInvalidMinDuration
	}
	return nil
}

// SetTestingMode toggles the unrestricted window.
func (p *Policy) SetTestingMode(on bool) {
	p.mu.Lock()
	p.testing = on
	p.mu.Unlock()
}

// TestingMode reports whether the window restriction is lifted.
func (p *Policy) TestingMode() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.testing
}

// SetMinDurationSlots changes the minimum duration.
func (p *Policy) SetMinDurationSlots(n int) error {
	if err := checkMinSlots(n); err != nil {
		return err
	}
	p.mu.Lock()
	p.minSlots = n
	p.mu.Unlock()
	return nil
}

// MinDurationSlots returns the minimum duration in slots.
func (p *Policy) MinDurationSlots() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minSlots
}

// MinDuration returns the minimum appointment length.
func (p *Policy) MinDuration() time.Duration {
	return time.Duration(p.MinDurationSlots()) * SlotDuration
}

// Location returns the business zone.
func (p *Policy) Location() *time.Location {
	return p.loc
}

// ClampEnd pushes end forward so the appointment lasts at least MinDuration.
func (p *Policy) ClampEnd(start, end time.Time) time.Time {
	minimum := p.MinDuration()
	if end.Sub(start) < minimum {
		return start.Add(minimum)
	}
	return end
}

// ClampStart pulls start back so the appointment lasts at least MinDuration.
// Used when the end side is being edited.
func (p *Policy) ClampStart(start, end time.Time) time.Time {
	minimum := p.MinDuration()
	if end.Sub(start) < minimum {
		return end.Add(-minimum)
	}
	return start
}

// Window returns the business window on the business date of t.
func (p *Policy) Window(t time.Time) (opens, closes time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.windowLocked(t)
}

func (p *Policy) windowLocked(t time.Time) (opens, closes time.Time) {
	b := t.In(p.loc)
	if p.testing {
		opens = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, p.loc)
		return opens, opens.AddDate(0, 0, 1)
	}
	opens = time.Date(b.Year(), b.Month(), b.Day(), p.openH, p.openM, 0, 0, p.loc)
	closes = time.Date(b.Year(), b.Month(), b.Day(), p.openH+p.hours, p.openM, 0, 0, p.loc)
	return opens, closes
}

// IsWithinWindow reports whether both ends fall inside the business window
// of start's business date. Always true in testing mode.
func (p *Policy) IsWithinWindow(start, end time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.testing {
		return true
	}
	opens, closes := p.windowLocked(start)
	return inside(start, opens, closes) && inside(end, opens, closes)
}

func inside(t, opens, closes time.Time) bool {
	return !t.Before(opens) && !t.After(closes)
}

// StartOptions lists slot-aligned start times on day (in day's zone) that
// leave room for a minimum-length appointment inside the window.
func (p *Policy) StartOptions(day time.Time) []time.Time {
	minimum := p.MinDuration()
	midnight := dateutil.TruncateToDay(day)
	next := midnight.AddDate(0, 0, 1)

	var opts []time.Time
	for t := midnight; t.Before(next); t = t.Add(SlotDuration) {
		if p.IsWithinWindow(t, t.Add(minimum)) {
			opts = append(opts, t)
		}
	}
	return opts
}

// Quantize rounds the wall clock of t down to a slot boundary.
func Quantize(t time.Time) time.Time {
	slot := int(SlotDuration / time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%slot, 0, 0, t.Location())
}
