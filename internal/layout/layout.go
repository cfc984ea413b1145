// Package layout places the events of a single day onto a time grid.
//
// Overlapping events are spread over columns with a sweep line: events are
// visited in (start, end) order, columns of events that have already ended
// are released, and each event takes the smallest column not held by an
// event still running. An event ending exactly when another starts does not
// overlap it. For interval graphs this first-fit order uses the minimum
// number of columns, i.e. the maximum number of simultaneously running events.
package layout

import (
	"sort"

	"eschedule/internal/model"
)

// Event is a schedule item whose times have been validated and converted to
// minutes since midnight.
type Event struct {
	Item  model.ScheduleItem
	Start int
	End   int
}

// Duration returns the length of the event in minutes.
func (e Event) Duration() int {
	return e.End - e.Start
}

// Overlaps reports whether two events share any running time.
// Touching boundaries do not count.
func (e Event) Overlaps(o Event) bool {
	return e.Start < o.End && o.Start < e.End
}

// Placed is an event together with its grid position.
type Placed struct {
	Event

	Column int
	Top    float64
	Height float64
	Left   float64
}

// FromItem validates a schedule item and converts its times.
func FromItem(item model.ScheduleItem) (Event, error) {
	start, err := ParseClock(item.StartTime)
	if err != nil {
		return Event{}, &ValidationError{EventID: item.ID, Field: "start_time", Value: item.StartTime, Err: err}
	}
	end, err := ParseClock(item.EndTime)
	if err != nil {
		return Event{}, &ValidationError{EventID: item.ID, Field: "end_time", Value: item.EndTime, Err: err}
	}
	if end <= start {
		return Event{}, &ValidationError{
			EventID: item.ID,
			Field:   "end_time",
			Value:   item.StartTime + "-" + item.EndTime,
			Err:     ErrNonPositiveDuration,
		}
	}
	return Event{Item: item, Start: start, End: end}, nil
}

// FromItems converts every item it can and returns the validation errors of
// the rest. The relative order of valid items is preserved.
func FromItems(items []model.ScheduleItem) ([]Event, []error) {
	events := make([]Event, 0, len(items))
	var errs []error
	for _, it := range items {
		ev, err := FromItem(it)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// Compute lays out items with geometry g. The first invalid item aborts the
// computation; no partial result is returned.
func Compute(items []model.ScheduleItem, g Geometry) ([]Placed, error) {
	events := make([]Event, 0, len(items))
	for _, it := range items {
		ev, err := FromItem(it)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return Arrange(events, g), nil
}

type activeEntry struct {
	end    int
	column int
}

// Arrange assigns columns and geometry to already validated events.
//
// The result is in sweep order: ascending start, then ascending end, then
// ascending item ID. The ID tie-break makes the assignment independent of
// the order of the input slice. events is not modified.
func Arrange(events []Event, g Geometry) []Placed {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Item.ID < b.Item.ID
	})

	out := make([]Placed, 0, len(sorted))
	active := make([]activeEntry, 0, 4)

	for _, ev := range sorted {
		kept := active[:0]
		for _, a := range active {
			if a.end > ev.Start {
				kept = append(kept, a)
			}
		}
		active = kept

		col := smallestFreeColumn(active)
		active = append(active, activeEntry{end: ev.End, column: col})

		out = append(out, Placed{
			Event:  ev,
			Column: col,
			Top:    g.Offset(ev.Start),
			Height: g.Height(ev.Duration()),
			Left:   g.Left(col),
		})
	}

	return out
}

// smallestFreeColumn returns the lowest column not held by active. With n
// active entries the answer is at most n.
func smallestFreeColumn(active []activeEntry) int {
	used := make([]bool, len(active)+1)
	for _, a := range active {
		if a.column < len(used) {
			used[a.column] = true
		}
	}
	for c, taken := range used {
		if !taken {
			return c
		}
	}
	return len(active)
}

// Columns returns the number of columns a layout occupies.
func Columns(placed []Placed) int {
	n := 0
	for _, p := range placed {
		if p.Column+1 > n {
			n = p.Column + 1
		}
	}
	return n
}

// MaxConcurrent returns the largest number of events running at the same
// instant.
func MaxConcurrent(events []Event) int {
	best := 0
	for _, e := range events {
		// The maximum is always reached at some event's start.
		n := 0
		for _, o := range events {
			if o.Start <= e.Start && e.Start < o.End {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}
