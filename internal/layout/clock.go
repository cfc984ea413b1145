package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a wall-clock minute value.
// "24:00" is accepted and maps to MinutesPerDay so that an event may end at
// midnight.
const MinutesPerDay = 24 * 60

var (
	// ErrMalformedTime is returned when a time field is not a valid "HH:MM" value.
	ErrMalformedTime = errors.New("malformed time, want HH:MM")

	// ErrNonPositiveDuration is returned when an event does not end after it starts.
	ErrNonPositiveDuration = errors.New("end time must be after start time")
)

// ParseClock converts a 24-hour "HH:MM" string into minutes since midnight.
// A single-digit hour ("9:30") is tolerated; minutes must have two digits.
func ParseClock(s string) (int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hs) == 0 || len(hs) > 2 || len(ms) != 2 {
		return 0, ErrMalformedTime
	}
	if !allDigits(hs) || !allDigits(ms) {
		return 0, ErrMalformedTime
	}
	h, _ := strconv.Atoi(hs)
	m, _ := strconv.Atoi(ms)

	if h == 24 && m == 0 {
		return MinutesPerDay, nil
	}
	if h > 23 || m > 59 {
		return 0, ErrMalformedTime
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MinutesPerDay {
		minutes = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidationError reports an event that cannot be laid out.
type ValidationError struct {
	EventID int
	Field   string
	Value   string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("layout: event %d: %s %q: %v", e.EventID, e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
