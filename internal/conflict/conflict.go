// Package conflict finds overlapping appointments for a customer.
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/javiermolinar/rendezvous/internal/appointment"
	"github.com/javiermolinar/rendezvous/internal/tz"
)

// Lister is the part of the repository the detector reads through.
type Lister interface {
	ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
}

// Overlaps reports whether [s1,e1) and [s2,e2) overlap.
// Back-to-back intervals (e1 == s2) do not.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Detector finds appointments of a customer that collide with a candidate interval.
type Detector struct {
	repo Lister
	norm *tz.Normalizer
}

// New creates a Detector reading through repo.
func New(repo Lister, norm *tz.Normalizer) *Detector {
	return &Detector{repo: repo, norm: norm}
}

// FindConflicts returns the customer's appointments overlapping [start, end),
// ordered by start and expressed in the display zone. An excludeID > 0 drops
// that appointment so an edit does not collide with itself.
func (d *Detector) FindConflicts(ctx context.Context, customerID int64, start, end time.Time, excludeID int64) ([]appointment.Appointment, error) {
	candidates, err := d.repo.ListAppointments(ctx, appointment.Filter{
		CustomerID: customerID,
		StartAfter: d.norm.ToCanonical(start),
		EndBefore:  d.norm.ToCanonical(end),
	})
	if err != nil {
		return nil, fmt.Errorf("listing customer appointments: %w", err)
	}

	var conflicts []appointment.Appointment
	for _, c := range candidates {
		if excludeID > 0 && c.ID == excludeID {
			continue
		}
		// The repository window is inclusive, so touching neighbours come back too.
		if !Overlaps(start, end, c.Start, c.End) {
			continue
		}
		conflicts = append(conflicts, c.In(d.norm.Location()))
	}
	return conflicts, nil
}

// Block returns the union busy window of conflicts: the earliest start and
// the latest end. It returns zero times for an empty slice.
func Block(conflicts []appointment.Appointment) (start, end time.Time) {
	for i, c := range conflicts {
		if i == 0 || c.Start.Before(start) {
			start = c.Start
		}
		if i == 0 || c.End.After(end) {
			end = c.End
		}
	}
	return start, end
}

// Check runs FindConflicts and turns a non-empty result into a ConflictError.
func (d *Detector) Check(ctx context.Context, customerID int64, start, end time.Time, excludeID int64) error {
	conflicts, err := d.FindConflicts(ctx, customerID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	blockStart, blockEnd := Block(conflicts)
	return &appointment.ConflictError{
		BlockStart: blockStart,
		BlockEnd:   blockEnd,
		Conflicts:  conflicts,
	}
}
