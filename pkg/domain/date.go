package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const civilDateLayout = "2006-01-02"

// CivilDate is a calendar date without a time component. The zero value
// represents an absent date and serialises as JSON null.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCivilDate constructs a date, normalising out-of-range days the way
// time.Date does.
func NewCivilDate(year int, month time.Month, day int) CivilDate {
	return CivilDateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// CivilDateOf returns the calendar date of t in its own location.
func CivilDateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// ParseCivilDate parses a YYYY-MM-DD string.
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse(civilDateLayout, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return CivilDateOf(t), nil
}

// IsZero reports whether the date is unset.
func (d CivilDate) IsZero() bool { return d == CivilDate{} }

// Time returns midnight UTC of the date.
func (d CivilDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD, or the empty string when unset.
func (d CivilDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(civilDateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d CivilDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *CivilDate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = CivilDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = CivilDate{}
		return nil
	}
	parsed, err := ParseCivilDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
