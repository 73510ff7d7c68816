package domain

import (
	"fmt"
	"time"

	"courier-dispatch/internal/apperr"
)

const minutesPerDay = 24 * 60

// WorkingHours is a daily window in minutes after local midnight.
// A window with Start > End wraps midnight.
type WorkingHours struct {
	Start   int
	End     int
	Enforce bool
}

// Validate checks that both bounds are valid minutes of the day.
func (w WorkingHours) Validate() error {
	if !w.Enforce {
		return nil
	}
	if w.Start < 0 || w.Start >= minutesPerDay || w.End < 0 || w.End >= minutesPerDay || w.Start == w.End {
		return fmt.Errorf("%w: working hours %d-%d", apperr.ErrInvalid, w.Start, w.End)
	}
	return nil
}

// Contains reports whether t, converted to loc, falls inside the window.
// A window that is not enforced contains every instant.
func (w WorkingHours) Contains(t time.Time, loc *time.Location) bool {
	if !w.Enforce {
		return true
	}
	if loc != nil {
		t = t.In(loc)
	}
	m := t.Hour()*60 + t.Minute()
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q", apperr.ErrInvalid, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
