package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eschedule/internal/log"
	"eschedule/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences are converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart (inclusive) and RangeEnd (exclusive) bound the window.
	// An occurrence is kept when it overlaps the window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps the expansion of a single RRULE. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands parsed events into concrete occurrences within
// the configured window. It handles single events, RRULE recurrence, EXDATE
// exceptions and RECURRENCE-ID overrides. Occurrences are returned sorted by
// start time, then UID.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides are keyed by source as well: two feeds may reuse a UID.
	type key struct{ source, uid string }
	overrides := make(map[key][]ParsedEvent)
	var bases []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			k := key{ev.Source.ID, ev.UID}
			overrides[k] = append(overrides[k], ev)
			continue
		}
		bases = append(bases, ev)
	}

	for _, ev := range bases {
		ov := overrides[key{ev.Source.ID, ev.UID}]
		var (
			occ    []model.Occurrence
			hitCap bool
		)
		if ev.RawRRule == "" {
			occ = expandSingle(ev, ov, cfg)
		} else {
			occ, hitCap = expandRecurring(ev, ov, cfg)
		}
		result.Occurrences = append(result.Occurrences, occ...)

		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.UID < b.UID
	})

	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	if ev.AllDay {
		start, end = anchorAllDay(start, end, cfg.DisplayLocation)
	}
	if !overlapsWindow(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	lookback := dur
	if ev.AllDay {
		dur = 24 * time.Hour
		// Anchoring may move an all-day instance by up to a day.
		lookback = 2 * dur
	}

	// Occurrences that started before the window may still run into it.
	loc := ev.Start.Location()
	from := cfg.RangeStart.Add(-lookback).In(loc)
	to := cfg.RangeEnd.In(loc)

	starts := set.Between(from, to, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		inst := ev
		if o, ok := findOverride(overrides, s); ok {
			inst, s, e = o, o.Start, o.End
		}
		if inst.AllDay {
			s, e = anchorAllDay(s, e, cfg.DisplayLocation)
		}
		if !overlapsWindow(s, e, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(inst, s, e, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride finds an override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Organizer:   ev.Organizer,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}

// anchorAllDay pins an all-day span to whole dates of loc, keeping the
// wall-clock date it was written with.
func anchorAllDay(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	days := int(end.Sub(start).Round(time.Hour) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	return d, d.AddDate(0, 0, days)
}

// overlapsWindow treats both ranges as half-open. A zero-length event is
// kept when its instant falls inside the window.
func overlapsWindow(start, end, winStart, winEnd time.Time) bool {
	if !end.After(start) {
		return !start.Before(winStart) && start.Before(winEnd)
	}
	return start.Before(winEnd) && end.After(winStart)
}
