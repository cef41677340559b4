// Package events publishes appointment changes to in-process subscribers
// and optional external sinks.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

// Kind names an appointment change.
type Kind string

const (
	Created   Kind = "appointment.created"
	Updated   Kind = "appointment.updated"
	Cancelled Kind = "appointment.cancelled"
)

// Event describes one appointment change.
type Event struct {
	ID          string
	Kind        Kind
	At          time.Time
	Actor       string
	Appointment appointment.Appointment
	Previous    appointment.Appointment // set for Updated
}

// New creates an event with a fresh id.
func New(kind Kind, at time.Time, actor string, a appointment.Appointment) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		At:          at,
		Actor:       actor,
		Appointment: a,
	}
}

// Handler receives events.
type Handler func(ctx context.Context, ev Event)

// Sink forwards events outside the process.
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. Sinks run after handlers; their failures are logged
// and never fail the publish.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	sinks  []Sink
	log    zerolog.Logger
}

type subscription struct {
	id int
	h  Handler
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// AddSink registers an external sink.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish delivers ev to every subscriber and sink.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(ctx, ev)
	}
	for _, s := range sinks {
		if err := s.Send(ctx, ev); err != nil {
			b.log.Warn().Err(err).
				Str("event_id", ev.ID).
				Str("kind", string(ev.Kind)).
				Int64("appointment_id", ev.Appointment.ID).
				Msg("event sink failed")
		}
	}
}

// Close closes every sink.
func (b *Bus) Close() error {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
