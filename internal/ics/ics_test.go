package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eschedule/internal/model"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:yoga@test
DTSTAMP:20261001T000000Z
DTSTART:20261005T060000Z
DTEND:20261005T070000Z
RRULE:FREQ=WEEKLY;BYDAY=MO
EXDATE:20261012T060000Z
SUMMARY:Йога
LOCATION:Зал 1
ORGANIZER;CN=Иванова И. И.:mailto:ivanova@example.com
END:VEVENT
BEGIN:VEVENT
UID:yoga@test
DTSTAMP:20261001T000000Z
RECURRENCE-ID:20261019T060000Z
DTSTART:20261019T080000Z
DTEND:20261019T090000Z
SUMMARY:Йога (перенос)
END:VEVENT
BEGIN:VEVENT
UID:swim@test
DTSTAMP:20261001T000000Z
DTSTART:20261006T043000Z
DTEND:20261006T053000Z
SUMMARY:Плавание
END:VEVENT
BEGIN:VEVENT
UID:holiday@test
DTSTAMP:20261001T000000Z
DTSTART;VALUE=DATE:20261007
DTEND;VALUE=DATE:20261008
SUMMARY:Выходной
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func parseFeed(t *testing.T) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(Source{ID: "gym"}, crlf(feed))
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	return events
}

func expandDay(t *testing.T, events []ParsedEvent, day time.Time) []model.Occurrence {
	t.Helper()
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      day,
		RangeEnd:        day.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("ExpandOccurrences: %v", err)
	}
	return res.Occurrences
}

func TestParseICS(t *testing.T) {
	events := parseFeed(t)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	yoga := events[0]
	if yoga.UID != "yoga@test" || yoga.RawRRule == "" || len(yoga.ExDates) != 1 {
		t.Fatalf("unexpected base event %+v", yoga)
	}
	if yoga.Organizer != "Иванова И. И." || yoga.Location != "Зал 1" {
		t.Errorf("organizer/location = %q / %q", yoga.Organizer, yoga.Location)
	}
	if !events[1].IsOverride || events[1].Recurrence == nil {
		t.Errorf("second event should be an override: %+v", events[1])
	}
	if !events[3].AllDay {
		t.Errorf("holiday should be all-day")
	}
}

func TestParseICSEmpty(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExpandRecurrence(t *testing.T) {
	events := parseFeed(t)

	tests := []struct {
		day       time.Time
		wantStart string
		wantTitle string
	}{
		{time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC), "06:00", "Йога"},
		{time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), "", ""},
		{time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), "08:00", "Йога (перенос)"},
		{time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), "06:00", "Йога"},
	}

	for _, tt := range tests {
		occ := expandDay(t, events, tt.day)
		if tt.wantStart == "" {
			if len(occ) != 0 {
				t.Errorf("%s: expected no occurrences, got %+v", tt.day.Format("2006-01-02"), occ)
			}
			continue
		}
		if len(occ) != 1 {
			t.Fatalf("%s: got %d occurrences, want 1", tt.day.Format("2006-01-02"), len(occ))
		}
		if got := occ[0].Start.Format("15:04"); got != tt.wantStart {
			t.Errorf("%s: start %s, want %s", tt.day.Format("2006-01-02"), got, tt.wantStart)
		}
		if occ[0].Summary != tt.wantTitle {
			t.Errorf("%s: summary %q, want %q", tt.day.Format("2006-01-02"), occ[0].Summary, tt.wantTitle)
		}
	}
}

func TestExpandSingleAndAllDay(t *testing.T) {
	events := parseFeed(t)

	occ := expandDay(t, events, time.Date(2026, 10, 6, 0, 0, 0, 0, time.UTC))
	if len(occ) != 1 || occ[0].UID != "swim@test" {
		t.Fatalf("unexpected occurrences %+v", occ)
	}

	occ = expandDay(t, events, time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC))
	if len(occ) != 1 || !occ[0].AllDay {
		t.Fatalf("expected the all-day holiday, got %+v", occ)
	}

	// The holiday ends at midnight of the 8th and must not leak into it.
	occ = expandDay(t, events, time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC))
	if len(occ) != 0 {
		t.Fatalf("expected nothing on the 8th, got %+v", occ)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestExportDayRoundTrip(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, loc)
	items := []model.ScheduleItem{
		{ID: 1, Org: "Организация 1", Title: "Занятие №1", Place: "Спортивный зал №2", Teacher: "Константинопольский К. К.", StartTime: "18:00", EndTime: "20:00", Color: "#5272E9"},
		{ID: 2, Title: "bad", StartTime: "25:00", EndTime: "26:00"},
	}

	body, errs := ExportDay("12345", day, items, day)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}

	events, err := ParseICS(Source{ID: "export"}, body)
	if err != nil {
		t.Fatalf("ParseICS(export): %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if want := day.Add(18 * time.Hour); !ev.Start.Equal(want) {
		t.Errorf("start %v, want %v", ev.Start, want)
	}
	if want := day.Add(20 * time.Hour); !ev.End.Equal(want) {
		t.Errorf("end %v, want %v", ev.End, want)
	}
	if ev.Summary != "Занятие №1" || ev.Location != "Спортивный зал №2" {
		t.Errorf("unexpected event %+v", ev)
	}
	if !strings.Contains(ev.UID, "12345") {
		t.Errorf("UID %q should carry the user id", ev.UID)
	}
}

// Berlin falls back from CEST to CET at 03:00 on 2026-10-25.
func TestExportDayDaylightSavingDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2026, 10, 25, 0, 0, 0, 0, berlin)
	items := []model.ScheduleItem{
		{ID: 1, Title: "Утро", StartTime: "10:00", EndTime: "11:00"},
		{ID: 2, Title: "Вечер", StartTime: "23:00", EndTime: "24:00"},
	}

	body, errs := ExportDay("12345", day, items, day)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	events, err := ParseICS(Source{ID: "export"}, body)
	if err != nil || len(events) != 2 {
		t.Fatalf("ParseICS(export): %d events, %v", len(events), err)
	}

	want := map[string][2]time.Time{
		"Утро":  {time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 25, 10, 0, 0, 0, time.UTC)},
		"Вечер": {time.Date(2026, 10, 25, 22, 0, 0, 0, time.UTC), time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC)},
	}
	for _, ev := range events {
		w, ok := want[ev.Summary]
		if !ok {
			t.Fatalf("unexpected event %q", ev.Summary)
		}
		if !ev.Start.Equal(w[0]) || !ev.End.Equal(w[1]) {
			t.Errorf("%s: %v-%v, want %v-%v", ev.Summary, ev.Start.UTC(), ev.End.UTC(), w[0], w[1])
		}
	}
}

func TestFetchRemoteWithCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(feed))
	}))

	f := NewFetcher(t.TempDir())
	src := Source{ID: "remote", URL: srv.URL + "/private.ics?token=secret"}
	ctx := context.Background()

	res, err := f.FetchOne(ctx, src)
	if err != nil || res.FromCache {
		t.Fatalf("first fetch: %+v, %v", res, err)
	}

	res, err = f.FetchOne(ctx, src)
	if err != nil || !res.FromCache || len(res.Body) == 0 {
		t.Fatalf("conditional fetch: fromCache=%v len=%d err=%v", res.FromCache, len(res.Body), err)
	}
	if hits != 2 {
		t.Fatalf("server hits = %d, want 2", hits)
	}

	srv.Close()
	res, err = f.FetchOne(ctx, src)
	if err != nil || !res.FromCache {
		t.Fatalf("offline fetch should fall back to cache: %+v, %v", res, err)
	}
}

func TestFetchAllLocalAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gym.ics")
	if err := os.WriteFile(path, crlf(feed), 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(dir)
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "gym", Path: path},
		{ID: "missing", Path: filepath.Join(dir, "nope.ics")},
		{ID: "empty"},
	})
	if len(results) != 1 || results[0].Source.ID != "gym" {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
}

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/path/private.ics?token=abcd": "https://example.com/...(redacted)",
		"http://host:8080?x=1":                             "http://host:8080/...(redacted)",
		"not a url":                                        "ics://...(redacted)",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
