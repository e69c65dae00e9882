package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight. It survives
// JSON round-trips as "HH:MM" and is comparable with plain < and >.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MinutesOfDay extracts the TimeOfDay from a full timestamp.
func MinutesOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int    { return int(t) / 60 }
func (t TimeOfDay) Minute() int  { return int(t) % 60 }
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the clock time to a calendar date, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Add shifts the clock time by a number of minutes, wrapping around midnight.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	v := (int(t) + minutes) % (24 * 60)
	if v < 0 {
		v += 24 * 60
	}
	return TimeOfDay(v)
}

// InWindow reports whether t falls inside [start, end]. When start > end the
// window wraps past midnight and membership becomes t >= start || t <= end.
func (t TimeOfDay) InWindow(start, end TimeOfDay) bool {
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}

// MarshalJSON renders the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM" / "HH:MM:SS" strings and bare minute counts.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseTimeOfDay(s)
		if perr != nil {
			return perr
		}
		*t = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("time of day: expected \"HH:MM\" or minutes, got %s", data)
	}
	*t = TimeOfDay(n)
	return nil
}

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the span covered by a leg starting at start and running
// for the given number of minutes.
func NewInterval(start time.Time, durationMinutes int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Extend pushes the end of the interval out by the given number of minutes.
// Used to pad a trip with the mandatory buffer before conflict checks.
func (iv Interval) Extend(minutes int) Interval {
	return Interval{Start: iv.Start, End: iv.End.Add(time.Duration(minutes) * time.Minute)}
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (a.End == b.Start) do not overlap, which is what makes a trip
// starting exactly at another's buffered end feasible.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Midnight truncates a timestamp to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween is the whole number of calendar days from a to b, computed on
// midnights so that time-of-day and DST shifts cannot skew the count.
func DaysBetween(a, b time.Time) int {
	am, bm := Midnight(a), Midnight(b)
	return int(bm.Sub(am).Hours() / 24)
}

// SameDate reports whether two timestamps fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
