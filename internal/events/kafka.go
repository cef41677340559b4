package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

// KafkaSink publishes events to a Kafka topic, keyed by customer so one
// customer's changes stay ordered within a partition.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

// Send writes one event.
func (k *KafkaSink) Send(ctx context.Context, ev Event) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event %s: %w", ev.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.w.Close()
}

type wireAppointment struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CustomerID  int64     `json:"customer_id"`
	UserID      int64     `json:"user_id"`
	ContactID   int64     `json:"contact_id"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
}

type wireEvent struct {
	ID          string           `json:"id"`
	Kind        Kind             `json:"kind"`
	At          time.Time        `json:"at"`
	Actor       string           `json:"actor"`
	Appointment wireAppointment  `json:"appointment"`
	Previous    *wireAppointment `json:"previous,omitempty"`
}

// Encode renders ev as a Kafka message. Instants are written in UTC.
func Encode(ev Event) (kafka.Message, error) {
	we := wireEvent{
		ID:          ev.ID,
		Kind:        ev.Kind,
		At:          ev.At.UTC(),
		Actor:       ev.Actor,
		Appointment: wireOf(ev.Appointment),
	}
	if ev.Previous.Persisted() {
		prev := wireOf(ev.Previous)
		we.Previous = &prev
	}

	value, err := json.Marshal(we)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %s: %w", ev.ID, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.Appointment.CustomerID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
		Time: ev.At,
	}, nil
}

func wireOf(a appointment.Appointment) wireAppointment {
	return wireAppointment{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		Type:        a.Type,
		Start:       a.Start.UTC(),
		End:         a.End.UTC(),
		CustomerID:  a.CustomerID,
		UserID:      a.UserID,
		ContactID:   a.ContactID,
		UpdatedBy:   a.UpdatedBy,
	}
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
