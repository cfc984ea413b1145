// Package calendar provides the date arithmetic behind the month sidebar and
// the day title of the schedule page.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ErrBadDate is returned for strings that are not a real YYYY-MM-DD date.
var ErrBadDate = errors.New("date must be YYYY-MM-DD")

// ParseDate parses a YYYY-MM-DD string into midnight of that day in loc.
// Out of range values such as 2025-02-30 are rejected rather than normalized.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if !dateRe.MatchString(s) {
		return time.Time{}, ErrBadDate
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadDate, err)
	}
	return t, nil
}

// DayOfMonth extracts the day from a YYYY-MM-DD string without validating
// the month. ok is false when s does not have the expected shape.
func DayOfMonth(s string) (day int, ok bool) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	d, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return d, true
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns midnight of the current day in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Prev returns the previous month, rolling the year over in January.
func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month, rolling the year over in December.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Date returns the given day of the month at midnight in loc.
func (m Month) Date(day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, loc)
}

// Grid returns the weeks of the month as rows of seven day numbers.
// Cells outside the month are zero. The first column is Monday unless
// weekStart is time.Sunday.
func (m Month) Grid(weekStart time.Weekday) [][7]int {
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	lead := (int(first) - int(weekStart) + 7) % 7

	n := DaysIn(m.Year, m.Month)
	cells := lead + n
	if cells%7 != 0 {
		cells += 7 - cells%7
	}

	weeks := make([][7]int, cells/7)
	for d := 1; d <= n; d++ {
		i := lead + d - 1
		weeks[i/7][i%7] = d
	}
	return weeks
}

// WeekStart maps the config value to a weekday.
func WeekStart(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}
