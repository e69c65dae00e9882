package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"08:00", 480, false},
		{"08:00:00", 480, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"nope", 0, true},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTimeOfDay_InWindow_WrapsMidnight(t *testing.T) {
	start, _ := ParseTimeOfDay("22:00")
	end, _ := ParseTimeOfDay("06:00")

	inside := []string{"22:00", "23:30", "00:15", "06:00"}
	for _, s := range inside {
		tod, _ := ParseTimeOfDay(s)
		if !tod.InWindow(start, end) {
			t.Errorf("%s should be inside wrapped window 22:00-06:00", s)
		}
	}

	outside := []string{"06:01", "12:00", "21:59"}
	for _, s := range outside {
		tod, _ := ParseTimeOfDay(s)
		if tod.InWindow(start, end) {
			t.Errorf("%s should be outside wrapped window 22:00-06:00", s)
		}
	}
}

func TestTimeOfDay_JSONRoundTrip(t *testing.T) {
	tod, _ := ParseTimeOfDay("09:15")
	data, err := json.Marshal(tod)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"09:15"` {
		t.Fatalf("marshal = %s, want \"09:15\"", data)
	}

	var back TimeOfDay
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != tod {
		t.Fatalf("round trip = %v, want %v", back, tod)
	}
}

func TestInterval_Overlaps_HalfOpen(t *testing.T) {
	day := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
	a := NewInterval(day.Add(8*time.Hour), 45) // 08:00-08:45

	// Touching at the boundary is not a conflict.
	b := NewInterval(day.Add(8*time.Hour+45*time.Minute), 30)
	if a.Overlaps(b) {
		t.Error("abutting intervals must not overlap")
	}

	// One minute of intersection is.
	c := NewInterval(day.Add(8*time.Hour+44*time.Minute), 30)
	if !a.Overlaps(c) {
		t.Error("intersecting intervals must overlap")
	}

	// Containment counts too.
	d := NewInterval(day.Add(8*time.Hour+10*time.Minute), 5)
	if !a.Overlaps(d) || !d.Overlaps(a) {
		t.Error("contained interval must overlap in both directions")
	}
}

func TestDaysBetween_IgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2025, 12, 1, 23, 50, 0, 0, time.UTC)
	trip := time.Date(2025, 12, 8, 0, 5, 0, 0, time.UTC)
	if got := DaysBetween(today, trip); got != 7 {
		t.Fatalf("DaysBetween = %d, want 7", got)
	}
	if got := DaysBetween(trip, today); got != -7 {
		t.Fatalf("reverse DaysBetween = %d, want -7", got)
	}
}

func TestHolidayEntry_Matches(t *testing.T) {
	christmas := HolidayEntry{
		Date:      time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC),
		Recurring: true,
		Active:    true,
	}
	if !christmas.Matches(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)) {
		t.Error("recurring holiday should match on month-day in any year")
	}
	if christmas.Matches(time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)) {
		t.Error("recurring holiday should not match a different day")
	}

	oneOff := HolidayEntry{
		Date:   time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC),
		Active: true,
	}
	if !oneOff.Matches(time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC)) {
		t.Error("exact-date holiday should match its date")
	}
	if oneOff.Matches(time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)) {
		t.Error("non-recurring holiday must not match other years")
	}

	inactive := HolidayEntry{Date: time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC)}
	if inactive.Matches(time.Date(2025, 9, 19, 0, 0, 0, 0, time.UTC)) {
		t.Error("inactive holiday must never match")
	}
}
