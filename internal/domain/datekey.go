package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the calendar-day layout used for attendance keys and
// streak comparisons.
const DateKeyLayout = "2006-01-02"

// DateKey is a calendar day ("YYYY-MM-DD") in the user's local time.
// The empty DateKey means "no day".
type DateKey string

// DateKeyOf returns the calendar day of t in t's own location.
func DateKeyOf(t time.Time) DateKey {
	return DateKey(t.Format(DateKeyLayout))
}

// ParseDateKey validates s and returns it as a DateKey.
func ParseDateKey(s string) (DateKey, error) {
	if _, err := time.Parse(DateKeyLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	return DateKey(s), nil
}

// Time returns midnight UTC of the day. UTC keeps day arithmetic free of
// DST jumps.
func (k DateKey) Time() (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, string(k))
	}
	return t, nil
}

// AddDays returns the day n days after k (n may be negative).
func (k DateKey) AddDays(n int) (DateKey, error) {
	t, err := k.Time()
	if err != nil {
		return "", err
	}
	return DateKeyOf(t.AddDate(0, 0, n)), nil
}

// IsZero reports whether k is the empty key.
func (k DateKey) IsZero() bool { return k == "" }

func (k DateKey) String() string { return string(k) }

// DaysBetween returns the number of calendar days from a to b.
// Negative when b is earlier than a.
func DaysBetween(a, b DateKey) (int, error) {
	ta, err := a.Time()
	if err != nil {
		return 0, err
	}
	tb, err := b.Time()
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// ─── Clock ──────────────────────────────────────────────────────────────────

// Clock supplies wall-clock time. Injected so "today" is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local system time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Today returns the local calendar day reported by c.
func Today(c Clock) DateKey {
	return DateKeyOf(c.Now())
}
