package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"eschedule/internal/calendar"
	"eschedule/internal/ics"
	"eschedule/internal/layout"
	appLog "eschedule/internal/log"
	"eschedule/internal/model"
)

// icsIDBase keeps feed item ids clear of the fixture ids.
const icsIDBase = 1000

// Colors handed to feeds that do not configure one, by position.
var feedPalette = []string{"#514DF7", "#24B0C9", "#EA4B4B", "#39C07B", "#F2A93B"}

// ICSSource serves events from ICS feeds. Feeds are loaded by Reload; Day
// only reads the last loaded snapshot.
type ICSSource struct {
	fetcher *ics.Fetcher
	sources []ics.Source
	loc     *time.Location
	now     func() time.Time

	mu       sync.RWMutex
	events   []ics.ParsedEvent
	byID     map[string]ics.Source
	loadedAt time.Time
}

// NewICSSource creates a source over the given feeds. Feeds without a color
// get one from a fixed palette.
func NewICSSource(fetcher *ics.Fetcher, sources []ics.Source, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	sources = append([]ics.Source(nil), sources...)
	byID := make(map[string]ics.Source, len(sources))
	for i := range sources {
		if sources[i].Color == "" {
			sources[i].Color = feedPalette[i%len(feedPalette)]
		}
		if sources[i].Name == "" {
			sources[i].Name = sources[i].ID
		}
		byID[sources[i].ID] = sources[i]
	}
	return &ICSSource{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
		now:     time.Now,
		byID:    byID,
	}
}

// Reload fetches and parses every feed and swaps in the new snapshot. Feeds
// that fail keep no events. When no feed yields any events and some failed,
// the previous snapshot stays in place and the errors are returned.
func (s *ICSSource) Reload(ctx context.Context) error {
	results, errs := s.fetcher.FetchAll(ctx, s.sources)

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, events...)
	}

	if len(s.sources) > 0 && len(results) == 0 {
		return errors.Join(errs...)
	}
	if len(parsed) == 0 && len(errs) > 0 {
		// Keep serving the previous snapshot rather than an empty day.
		return errors.Join(errs...)
	}

	s.mu.Lock()
	s.events = parsed
	s.loadedAt = s.now()
	s.mu.Unlock()

	appLog.Info("ics sources reloaded", "feeds", len(results), "events", len(parsed), "errors", len(errs))
	return nil
}

// LoadedAt reports when the snapshot was last replaced.
func (s *ICSSource) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Day expands the snapshot for date. An empty date means today; a malformed
// date yields no items. All-day events are left out, and events crossing
// midnight are clipped to the day.
func (s *ICSSource) Day(_ context.Context, _ string, date string) ([]model.ScheduleItem, error) {
	var day time.Time
	if date == "" {
		day = calendar.Today(s.now(), s.loc)
	} else {
		d, err := calendar.ParseDate(date, s.loc)
		if err != nil {
			appLog.Debug("ics source: ignoring malformed date", "date", date)
			return []model.ScheduleItem{}, nil
		}
		day = d
	}

	s.mu.RLock()
	events := s.events
	s.mu.RUnlock()

	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      day,
		RangeEnd:        day.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}

	items := make([]model.ScheduleItem, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		if occ.AllDay {
			continue
		}
		items = append(items, s.toItem(icsIDBase+len(items)+1, occ, day))
	}
	return items, nil
}

func (s *ICSSource) toItem(id int, occ model.Occurrence, day time.Time) model.ScheduleItem {
	dayEnd := day.AddDate(0, 0, 1)
	start, end := occ.Start, occ.End
	if start.Before(day) {
		start = day
	}
	if end.After(dayEnd) {
		end = dayEnd
	}

	src := s.byID[occ.SourceID]
	teacher := occ.Organizer
	if teacher == "" {
		teacher = occ.Description
	}

	return model.ScheduleItem{
		ID:        id,
		Org:       src.Name,
		Title:     occ.Summary,
		Place:     occ.Location,
		Teacher:   teacher,
		StartTime: layout.FormatClock(s.clockOf(start, dayEnd)),
		EndTime:   layout.FormatClock(s.clockOf(end, dayEnd)),
		Color:     src.Color,
	}
}

// clockOf returns the wall-clock minute of t in the display zone. Reading the
// clock instead of counting elapsed time keeps 23 and 25 hour days right.
// dayEnd maps to 24:00.
func (s *ICSSource) clockOf(t, dayEnd time.Time) int {
	if !t.Before(dayEnd) {
		return layout.MinutesPerDay
	}
	lt := t.In(s.loc)
	return lt.Hour()*60 + lt.Minute()
}
