package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the storage and wire format of a canonical month.
const MonthLayout = "2006-01-02"

// Month is a calendar month, always held as the first day of that month at
// UTC midnight. It is the partition key for period queries.
type Month struct {
	time.Time
}

// CanonicalMonth normalizes t to the first day of its month.
func CanonicalMonth(t time.Time) Month {
	return Month{Time: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// NewMonth builds a canonical month from a year and a 1-based month number.
// Out of range months roll over like time.Date does.
func NewMonth(year, month int) Month {
	return CanonicalMonth(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

// ParseMonth accepts "YYYY-MM" or "YYYY-MM-DD"; any day is canonicalized.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{MonthLayout, "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return CanonicalMonth(t), nil
		}
	}
	return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// AddMonths moves n calendar months forward (or back when n < 0).
func (m Month) AddMonths(n int) Month {
	c := CanonicalMonth(m.Time)
	return CanonicalMonth(c.AddDate(0, n, 0))
}

// Before reports whether m is an earlier month than o.
func (m Month) Before(o Month) bool {
	return CanonicalMonth(m.Time).Time.Before(CanonicalMonth(o.Time).Time)
}

// After reports whether m is a later month than o.
func (m Month) After(o Month) bool {
	return CanonicalMonth(m.Time).Time.After(CanonicalMonth(o.Time).Time)
}

// Equal compares months after canonicalization.
func (m Month) Equal(o Month) bool {
	return CanonicalMonth(m.Time).Time.Equal(CanonicalMonth(o.Time).Time)
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return CanonicalMonth(m.Time).Format(MonthLayout)
}

// Label renders the month the way the selector shows it, e.g. "03/2025".
func (m Month) Label() string {
	return fmt.Sprintf("%02d/%d", int(m.Time.Month()), m.Year())
}

// UpcomingMonths returns count consecutive months starting at now's month.
func UpcomingMonths(now time.Time, count int) []Month {
	start := CanonicalMonth(now)
	out := make([]Month, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, start.AddMonths(i))
	}
	return out
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	return m.UnmarshalText([]byte(s))
}
