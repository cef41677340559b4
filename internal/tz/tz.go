// Package tz converts between canonical (UTC) instants and the display zone.
package tz

import (
	"fmt"
	"time"
)

// Normalizer holds the display zone resolved at startup.
// The zone never changes afterwards, even if the host zone does.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc. A nil loc captures the host zone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Load resolves an IANA zone name. An empty name captures the host zone.
func Load(name string) (*Normalizer, error) {
	if name == "" {
		return New(nil), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading display timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the display zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// ToCanonical converts a local instant to UTC.
func (n *Normalizer) ToCanonical(local time.Time) time.Time {
	return local.UTC()
}

// ToLocal converts a canonical instant to the display zone.
// A nil instant yields nil.
func (n *Normalizer) ToLocal(canonical *time.Time) *time.Time {
	if canonical == nil {
		return nil
	}
	local := canonical.In(n.loc)
	return &local
}

// Local is ToLocal for non-optional values.
func (n *Normalizer) Local(canonical time.Time) time.Time {
	return canonical.In(n.loc)
}

// At builds the local instant for a calendar date and wall clock.
func (n *Normalizer) At(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, n.loc)
}
