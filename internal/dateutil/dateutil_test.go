package dateutil

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)

	got, err := ParseDate("2024-03-04", ny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, ny)
	if !got.Equal(want) || got.Location() != ny {
		t.Errorf("got %v, want %v", got, want)
	}

	today, err := ParseDate("", ny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if today.Hour() != 0 || today.Location() != ny {
		t.Errorf("empty date should be local midnight, got %v", today)
	}

	if _, err := ParseDate("03/04/2024", ny); !errors.Is(err, ErrInvalidDateFormat) {
		t.Errorf("got error %v, want %v", err, ErrInvalidDateFormat)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"23:55", 23, 55, false},
		{"8:00", 0, 0, true},
		{"24:00", 0, 0, true},
		{"ab:cd", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidClock) {
				t.Errorf("ParseClock(%q) error = %v, want ErrInvalidClock", tt.in, err)
			}
			continue
		}
		if err != nil || h != tt.h || m != tt.m {
			t.Errorf("ParseClock(%q) = %d, %d, %v", tt.in, h, m, err)
		}
	}
}

func TestSundayAnchor(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"sunday is its own anchor", time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"saturday goes back six days", time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"friday first of month", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)},
		{"crosses year", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SundayAnchor(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.Weekday() != time.Sunday {
				t.Errorf("anchor weekday = %v", got.Weekday())
			}
		})
	}
}

func TestSundayAnchor_DST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST starts on Sunday 2024-03-10.
	got := SundayAnchor(time.Date(2024, 3, 13, 10, 0, 0, 0, ny))
	if got.Day() != 10 || got.Hour() != 0 {
		t.Errorf("got %v, want 2024-03-10 00:00", got)
	}
}

func TestMonthBounds(t *testing.T) {
	d := time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
	if got := MonthStart(d); !got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthStart = %v", got)
	}
	if got := MonthEnd(d); !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthEnd = %v", got)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 4, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	b := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC) // 22:00 EST on the 4th
	if !SameDay(a, b) {
		t.Error("instants on the same local day should match")
	}
	if SameDay(a, b.Add(3*time.Hour)) {
		t.Error("next local day should not match")
	}
}

func TestParseRelativeDate(t *testing.T) {
	friday := time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		input   string
		want    time.Time
		wantErr error
	}{
		{"", day(10), nil},
		{"Today", day(10), nil},
		{"tomorrow", day(11), nil},
		{"sunday", day(12), nil},
		{"friday", day(17), nil},
		{"next-monday", day(13), nil},
		{"next-week", day(17), nil},
		{"  monday ", day(13), nil},
		{"2025-01-15", day(15), nil},
		{"2025-01-09", time.Time{}, ErrDateInPast},
		{"next-someday", time.Time{}, ErrInvalidDateFormat},
		{"01/15/2025", time.Time{}, ErrInvalidDateFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRelativeDate(tt.input, friday)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
