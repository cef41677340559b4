package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

type recordingSink struct {
	sent   []Event
	err    error
	closed bool
}

func (s *recordingSink) Send(_ context.Context, ev Event) error {
	s.sent = append(s.sent, ev)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got []string

	bus.Subscribe(func(_ context.Context, ev Event) { got = append(got, "a:"+string(ev.Kind)) })
	unsub := bus.Subscribe(func(_ context.Context, ev Event) { got = append(got, "b:"+string(ev.Kind)) })

	ctx := context.Background()
	bus.Publish(ctx, New(Created, time.Now(), "ann", appointment.Appointment{ID: 1}))
	unsub()
	bus.Publish(ctx, New(Cancelled, time.Now(), "ann", appointment.Appointment{ID: 1}))

	want := []string{"a:appointment.created", "b:appointment.created", "a:appointment.cancelled"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBusSinkFailureDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}
	bus.AddSink(failing)
	bus.AddSink(ok)

	bus.Publish(context.Background(), New(Created, time.Now(), "ann", appointment.Appointment{ID: 2}))

	if len(failing.sent) != 1 || len(ok.sent) != 1 {
		t.Errorf("sinks received %d and %d events, want 1 and 1", len(failing.sent), len(ok.sent))
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !failing.closed || !ok.closed {
		t.Error("Close should close every sink")
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(context.Background(), Event{})
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := New(Created, time.Now(), "ann", appointment.Appointment{})
	b := New(Created, time.Now(), "ann", appointment.Appointment{})
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q should be unique and non-empty", a.ID, b.ID)
	}
}

func TestEncode(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	prev := appointment.Appointment{ID: 9, Fields: appointment.Fields{
		Title: "Old", CustomerID: 42,
		Start: time.Date(2024, 3, 4, 9, 0, 0, 0, est),
		End:   time.Date(2024, 3, 4, 10, 0, 0, 0, est),
	}}
	cur := prev
	cur.Title = "New"

	ev := New(Updated, time.Date(2024, 3, 1, 8, 0, 0, 0, est), "ann", cur)
	ev.Previous = prev

	msg, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(msg.Key) != "42" {
		t.Errorf("key = %q, want 42", msg.Key)
	}

	var decoded struct {
		Kind        string `json:"kind"`
		Appointment struct {
			Title string    `json:"title"`
			Start time.Time `json:"start"`
		} `json:"appointment"`
		Previous *struct {
			Title string `json:"title"`
		} `json:"previous"`
	}
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if decoded.Kind != string(Updated) || decoded.Appointment.Title != "New" {
		t.Errorf("unexpected payload %s", msg.Value)
	}
	if decoded.Appointment.Start.Hour() != 14 {
		t.Errorf("start should be UTC, got %v", decoded.Appointment.Start)
	}
	if decoded.Previous == nil || decoded.Previous.Title != "Old" {
		t.Errorf("previous missing from %s", msg.Value)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("SplitBrokers = %v", got)
	}
	if SplitBrokers("") != nil {
		t.Error("empty input should yield nil")
	}
}
