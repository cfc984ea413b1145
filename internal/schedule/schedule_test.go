package schedule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"eschedule/internal/ics"
	"eschedule/internal/layout"
	"eschedule/internal/model"
)

func ids(items []model.ScheduleItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMockSourceSelection(t *testing.T) {
	tests := []struct {
		date string
		want []int
	}{
		{"", []int{1, 2}},
		{"garbage", []int{1, 2}},
		{"2026-10-03", []int{3, 4, 10, 11}},
		{"2026-10-06", []int{3, 4, 10, 11}},
		{"2026-10-04", []int{1, 2}},
		{"2026-10-05", []int{5}},
		{"2026-10-30", []int{3, 4, 10, 11}},
		{"2026-10-31", []int{5}},
	}

	for _, tt := range tests {
		items, err := MockSource{}.Day(context.Background(), "12345", tt.date)
		if err != nil {
			t.Fatalf("Day(%q): %v", tt.date, err)
		}
		if got := ids(items); !equalInts(got, tt.want) {
			t.Errorf("Day(%q) ids = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestMockSourceReturnsCopies(t *testing.T) {
	items, _ := MockSource{}.Day(context.Background(), "u", "")
	items[0].Title = "changed"
	again, _ := MockSource{}.Day(context.Background(), "u", "")
	if again[0].Title == "changed" {
		t.Fatal("fixtures were mutated through a returned slice")
	}
}

func TestFixturesLayOut(t *testing.T) {
	for _, set := range [][]model.ScheduleItem{baseFixtures, altAFixtures, altBFixtures} {
		placed, err := layout.Compute(set, layout.DefaultGeometry())
		if err != nil {
			t.Fatalf("fixture does not validate: %v", err)
		}
		if len(placed) != len(set) {
			t.Fatalf("placed %d of %d", len(placed), len(set))
		}
	}
	// 19:00-21:00 and 19:00-20:00 overlap in the evening set.
	placed, _ := layout.Compute(altAFixtures, layout.DefaultGeometry())
	if layout.Columns(placed) != 2 {
		t.Fatalf("evening set should need two columns, got %d", layout.Columns(placed))
	}
}

type stubSource struct {
	items []model.ScheduleItem
	err   error
}

func (s stubSource) Day(context.Context, string, string) ([]model.ScheduleItem, error) {
	return s.items, s.err
}

func TestComposite(t *testing.T) {
	ok := stubSource{items: []model.ScheduleItem{{ID: 1}}}
	bad := stubSource{err: errors.New("down")}

	items, err := Composite{ok, bad, ok}.Day(context.Background(), "u", "")
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	if _, err := (Composite{bad, bad}).Day(context.Background(), "u", ""); err == nil {
		t.Fatal("expected error when every source fails")
	}

	items, err = Composite{}.Day(context.Background(), "u", "")
	if err != nil || len(items) != 0 {
		t.Fatalf("empty composite = %v, %v", items, err)
	}
}

const gymFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:stretch@gym
DTSTAMP:20261001T000000Z
DTSTART:20261015T090000Z
DTEND:20261015T100000Z
RRULE:FREQ=DAILY;COUNT=3
SUMMARY:Растяжка
LOCATION:Зал 2
ORGANIZER;CN=Орлова О. О.:mailto:orlova@example.com
END:VEVENT
BEGIN:VEVENT
UID:night@gym
DTSTAMP:20261001T000000Z
DTSTART:20261015T230000Z
DTEND:20261016T010000Z
SUMMARY:Ночной забег
END:VEVENT
BEGIN:VEVENT
UID:holiday@gym
DTSTAMP:20261001T000000Z
DTSTART;VALUE=DATE:20261015
DTEND;VALUE=DATE:20261016
SUMMARY:День открытых дверей
END:VEVENT
END:VCALENDAR
`

func newGymSource(t *testing.T) *ICSSource {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gym.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(gymFeed, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewICSSource(ics.NewFetcher(dir), []ics.Source{{ID: "gym", Name: "Фитнес", Path: path}}, time.UTC)
	if err := src.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return src
}

func TestICSSourceDay(t *testing.T) {
	src := newGymSource(t)

	items, err := src.Day(context.Background(), "12345", "2026-10-15")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (all-day excluded): %+v", len(items), items)
	}

	first := items[0]
	if first.StartTime != "09:00" || first.EndTime != "10:00" || first.Title != "Растяжка" {
		t.Errorf("unexpected first item %+v", first)
	}
	if first.Org != "Фитнес" || first.Teacher != "Орлова О. О." || first.Color == "" {
		t.Errorf("metadata not mapped: %+v", first)
	}
	if first.ID <= icsIDBase {
		t.Errorf("id %d should be above %d", first.ID, icsIDBase)
	}

	// Clipped at midnight.
	if items[1].StartTime != "23:00" || items[1].EndTime != "24:00" {
		t.Errorf("unexpected clipped item %+v", items[1])
	}

	next, err := src.Day(context.Background(), "12345", "2026-10-16")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if len(next) != 2 || next[0].StartTime != "00:00" || next[0].EndTime != "01:00" {
		t.Fatalf("unexpected items on the 16th: %+v", next)
	}

	if _, err := layout.Compute(append(items, next...), layout.DefaultGeometry()); err != nil {
		t.Fatalf("feed items must validate: %v", err)
	}
}

func TestICSSourceMalformedDate(t *testing.T) {
	src := newGymSource(t)
	items, err := src.Day(context.Background(), "u", "2026-13-45")
	if err != nil || len(items) != 0 {
		t.Fatalf("malformed date = %v, %v", items, err)
	}
}

func TestICSSourceReloadFailure(t *testing.T) {
	src := NewICSSource(ics.NewFetcher(t.TempDir()), []ics.Source{{ID: "x", Path: "/nonexistent/feed.ics"}}, time.UTC)
	if err := src.Reload(context.Background()); err == nil {
		t.Fatal("expected error when no feed loads")
	}
	if !src.LoadedAt().IsZero() {
		t.Fatal("snapshot should not be marked loaded")
	}
}

type countingReloader struct {
	n    atomic.Int32
	done chan struct{}
}

func (c *countingReloader) Reload(context.Context) error {
	if c.n.Add(1) == 1 {
		close(c.done)
	}
	return nil
}

func TestRefresherInitialReload(t *testing.T) {
	target := &countingReloader{done: make(chan struct{})}
	r := NewRefresher("*/15 * * * *", time.UTC, target)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()

	select {
	case <-target.done:
	case <-time.After(5 * time.Second):
		t.Fatal("initial reload did not happen")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
}

func TestRefresherBadSpec(t *testing.T) {
	r := NewRefresher("every now and then", time.UTC, &countingReloader{done: make(chan struct{})})
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

const dstFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:morning@gym
DTSTAMP:20261001T000000Z
DTSTART:20261025T090000Z
DTEND:20261025T100000Z
SUMMARY:Утренняя тренировка
END:VEVENT
BEGIN:VEVENT
UID:late@gym
DTSTAMP:20261001T000000Z
DTSTART:20261025T220000Z
DTEND:20261026T000000Z
SUMMARY:Поздняя тренировка
END:VEVENT
END:VCALENDAR
`

// 2026-10-25 has 25 hours in Berlin: clocks go back at 03:00 CEST.
func TestICSSourceDaylightSavingDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "dst.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(dstFeed, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewICSSource(ics.NewFetcher(dir), []ics.Source{{ID: "gym", Path: path}}, berlin)
	if err := src.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	items, err := src.Day(context.Background(), "u", "2026-10-25")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}
	if items[0].StartTime != "10:00" || items[0].EndTime != "11:00" {
		t.Errorf("morning item = %s-%s, want 10:00-11:00", items[0].StartTime, items[0].EndTime)
	}
	// 23:00 CET until the next midnight is clipped to the end of the day.
	if items[1].StartTime != "23:00" || items[1].EndTime != "24:00" {
		t.Errorf("late item = %s-%s, want 23:00-24:00", items[1].StartTime, items[1].EndTime)
	}
}

func TestICSSourceKeepsSnapshotWhenFeedBreaks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gym.ics")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(gymFeed, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewICSSource(ics.NewFetcher(dir), []ics.Source{{ID: "gym", Path: path}}, time.UTC)
	if err := src.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	loaded := src.LoadedAt()

	// The file is still readable but no longer parses.
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := src.Reload(context.Background()); err == nil {
		t.Fatal("expected error when every feed fails to parse")
	}
	if !src.LoadedAt().Equal(loaded) {
		t.Error("snapshot was replaced")
	}

	items, err := src.Day(context.Background(), "u", "2026-10-15")
	if err != nil || len(items) != 2 {
		t.Fatalf("previous snapshot not served: %+v, %v", items, err)
	}
}
