package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eschedule/internal/log"
)

// ParsedEvent is a VEVENT reduced to the fields the schedule uses.
type ParsedEvent struct {
	Source Source

	UID string

	Summary     string
	Description string
	Location    string
	Organizer   string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	// Recurrence is the RECURRENCE-ID of an override, in the event's zone.
	Recurrence *time.Time
	IsOverride bool
}

// ParseICS parses one feed body. Recurrence rules are recorded, not
// expanded; see ExpandOccurrences. VEVENTs that fail to parse are logged and
// skipped, so only an unreadable calendar is an error.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "source", src.redacted())
		return nil, err
	}

	vevents := cal.Events()
	events := make([]ParsedEvent, 0, len(vevents))
	for _, ve := range vevents {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Error("skipping unreadable vevent", err, "id", src.ID, "source", src.redacted())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics feed parsed", "id", src.ID, "source", src.redacted(), "events", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return ParsedEvent{}, errors.New("missing UID")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ParsedEvent{}, fmt.Errorf("uid %s: %w", uid, err)
	}

	out := ParsedEvent{
		Source:      src,
		UID:         uid,
		Summary:     propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
		Start:       start,
		AllDay:      isDateValue(ve.GetProperty(ical.ComponentPropertyDtStart)),
		RawRRule:    propValue(ve, ical.ComponentPropertyRrule),
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Organizer = organizerName(p.Value, p.ICalParameters)
	}

	// Without DTEND an all-day event lasts one day and a timed one has no
	// duration, which the layout later rejects.
	out.End, err = ve.GetEndAt()
	if err != nil {
		out.End = start
		if out.AllDay {
			out.End = start.AddDate(0, 0, 1)
		}
	}

	loc := start.Location()
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		out.ExDates = append(out.ExDates, parseTimeList(p.Value, tzidLocation(p.ICalParameters, loc))...)
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, tzidLocation(p.ICalParameters, loc)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// isDateValue reports whether a DTSTART carries a DATE rather than a DATE-TIME.
func isDateValue(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseTimeList parses a comma separated EXDATE value, dropping bad entries.
func parseTimeList(v string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, part := range strings.Split(v, ",") {
		if t, err := parseICSTime(part, loc); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// organizerName prefers the CN parameter and falls back to the address.
func organizerName(value string, params map[string][]string) string {
	if cn, ok := params["CN"]; ok && len(cn) > 0 && cn[0] != "" {
		return cn[0]
	}
	return strings.TrimPrefix(strings.TrimPrefix(value, "mailto:"), "MAILTO:")
}

// tzidLocation resolves a TZID parameter, falling back to def.
func tzidLocation(params map[string][]string, def *time.Location) *time.Location {
	if tz, ok := params["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.Local
	}
	return def
}

// parseICSTime parses a basic ICS DATE or DATE-TIME value. Floating values
// are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
