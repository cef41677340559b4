package appointment

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func validFields() Fields {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return Fields{
		Title:      "Quarterly review",
		Location:   "Room 4",
		Type:       "Planning",
		Start:      start,
		End:        start.Add(time.Hour),
		CustomerID: 1,
		UserID:     1,
		ContactID:  1,
	}
}

func TestFieldsValidate(t *testing.T) {
	if err := validFields().Validate(); err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}

	f := Fields{Title: "ab", Type: "  x ", Location: ""}
	err := f.Validate()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := []string{"title", "type", "location", "start", "end", "customer", "contact"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("got %d field errors, want %d: %v", len(verr.Fields), len(want), verr)
	}
	for i, field := range want {
		if verr.Fields[i].Field != field {
			t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, field)
		}
	}
	if verr.Fields[3].Code != CodeDateEmpty {
		t.Errorf("start code = %q, want %q", verr.Fields[3].Code, CodeDateEmpty)
	}
}

func TestFieldsValidate_MultibyteTitle(t *testing.T) {
	f := validFields()
	f.Title = "日本語"
	if err := f.Validate(); err != nil {
		t.Errorf("three runes should be accepted: %v", err)
	}
}

func TestFieldsEqual(t *testing.T) {
	a := validFields()
	b := a
	b.Start = a.Start.In(time.FixedZone("X", 3600))
	b.End = a.End.In(time.FixedZone("X", 3600))
	if !a.Equal(b) {
		t.Error("same instants in different zones should be equal")
	}

	b.Description = "changed"
	if a.Equal(b) {
		t.Error("description change should not be equal")
	}
}

func TestAppointmentSame(t *testing.T) {
	a := Appointment{ID: 7, Fields: validFields()}
	b := Appointment{ID: 7}
	c := Appointment{ID: 8, Fields: validFields()}

	if !a.Same(b) {
		t.Error("equal ids should be the same appointment")
	}
	if a.Same(c) {
		t.Error("identical fields with different ids are different appointments")
	}
	if (Appointment{}).Same(Appointment{}) {
		t.Error("unsaved appointments have no identity")
	}
}

func TestAppointmentOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC) }
	mk := func(s, e time.Time) Appointment { return Appointment{Fields: Fields{Start: s, End: e}} }

	tests := []struct {
		name string
		a, b Appointment
		want bool
	}{
		{"back to back", mk(at(10, 0), at(11, 0)), mk(at(11, 0), at(12, 0)), false},
		{"partial", mk(at(9, 0), at(10, 0)), mk(at(9, 30), at(10, 30)), true},
		{"contained", mk(at(9, 0), at(12, 0)), mk(at(10, 0), at(10, 5)), true},
		{"disjoint", mk(at(8, 0), at(9, 0)), mk(at(13, 0), at(14, 0)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Fields: []FieldError{{Field: "title"}}}, "validation"},
		{fmt.Errorf("wrapped: %w", &ConflictError{}), "conflict"},
		{fmt.Errorf("gone: %w", ErrNotFound), "not_found"},
		{&PersistenceError{Op: "insert", Err: errors.New("disk full")}, "persistence"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationErrorOrNil(t *testing.T) {
	var verr ValidationError
	if verr.OrNil() != nil {
		t.Error("empty ValidationError should be nil")
	}
	verr.Add("title", CodeTooShort, "too short")
	if verr.OrNil() == nil {
		t.Error("non-empty ValidationError should not be nil")
	}
	if !verr.Has("title") || verr.Has("type") {
		t.Error("Has reported wrong fields")
	}
}
