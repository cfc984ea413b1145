package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-15", time.UTC)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.October || d.Day() != 15 || d.Hour() != 0 {
		t.Fatalf("unexpected date %v", d)
	}

	for _, bad := range []string{"", "2026-1-15", "2026-02-30", "15.10.2026", "2026-13-01"} {
		if _, err := ParseDate(bad, time.UTC); !errors.Is(err, ErrBadDate) {
			t.Errorf("ParseDate(%q) err = %v, want ErrBadDate", bad, err)
		}
	}
}

func TestDayOfMonth(t *testing.T) {
	if d, ok := DayOfMonth("2026-10-09"); !ok || d != 9 {
		t.Fatalf("DayOfMonth = %d, %v", d, ok)
	}
	if _, ok := DayOfMonth("today"); ok {
		t.Fatal("expected ok=false")
	}
}

func TestMonthNavigation(t *testing.T) {
	jan := Month{Year: 2026, Month: time.January}
	if p := jan.Prev(); p != (Month{Year: 2025, Month: time.December}) {
		t.Fatalf("Prev = %v", p)
	}
	dec := Month{Year: 2026, Month: time.December}
	if n := dec.Next(); n != (Month{Year: 2027, Month: time.January}) {
		t.Fatalf("Next = %v", n)
	}
	if s := (Month{Year: 2026, Month: time.March}).String(); s != "2026-03" {
		t.Fatalf("String = %q", s)
	}
	m, err := ParseMonth("2024-02")
	if err != nil || m != (Month{Year: 2024, Month: time.February}) {
		t.Fatalf("ParseMonth = %v, %v", m, err)
	}
}

func TestGridMondayFirst(t *testing.T) {
	// October 2026 starts on a Thursday and has 31 days.
	weeks := Month{Year: 2026, Month: time.October}.Grid(time.Monday)
	if len(weeks) != 5 {
		t.Fatalf("got %d weeks, want 5", len(weeks))
	}
	if weeks[0] != [7]int{0, 0, 0, 1, 2, 3, 4} {
		t.Fatalf("first week %v", weeks[0])
	}
	if weeks[4] != [7]int{26, 27, 28, 29, 30, 31, 0} {
		t.Fatalf("last week %v", weeks[4])
	}
}

func TestGridSundayFirst(t *testing.T) {
	// February 2026 starts on a Sunday: exactly four full weeks.
	weeks := Month{Year: 2026, Month: time.February}.Grid(time.Sunday)
	if len(weeks) != 4 {
		t.Fatalf("got %d weeks, want 4", len(weeks))
	}
	if weeks[0][0] != 1 || weeks[3][6] != 28 {
		t.Fatalf("unexpected grid %v", weeks)
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		y    int
		m    time.Month
		want int
	}{
		{2024, time.February, 29},
		{2026, time.February, 28},
		{2026, time.April, 30},
		{2026, time.December, 31},
	}
	for _, c := range cases {
		if got := DaysIn(c.y, c.m); got != c.want {
			t.Errorf("DaysIn(%d, %v) = %d, want %d", c.y, c.m, got, c.want)
		}
	}
}

func TestNames(t *testing.T) {
	d := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	if got := DayTitle(d); got != "15 октября 2026" {
		t.Fatalf("DayTitle = %q", got)
	}
	if got := MonthName(time.January); got != "Январь" {
		t.Fatalf("MonthName = %q", got)
	}
	h := WeekdayHeaders(time.Monday)
	if h[0] != "ПН" || h[6] != "ВС" {
		t.Fatalf("headers %v", h)
	}
	if WeekStart("sunday") != time.Sunday || WeekStart("x") != time.Monday {
		t.Fatal("WeekStart mapping")
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	now := time.Date(2026, time.October, 15, 22, 30, 0, 0, time.UTC)
	got := Today(now, loc)
	if got.Day() != 16 || got.Hour() != 0 {
		t.Fatalf("Today = %v", got)
	}
}
