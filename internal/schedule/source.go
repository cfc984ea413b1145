// Package schedule provides the day-scoped event lists shown on the schedule
// page. Data comes from hand-written fixtures and, optionally, ICS feeds.
package schedule

import (
	"context"
	"errors"

	appLog "eschedule/internal/log"
	"eschedule/internal/model"
)

// Source returns the schedule of one user for one day. date is the raw
// YYYY-MM-DD string from the request and may be empty or malformed; every
// implementation decides how to treat that.
type Source interface {
	Day(ctx context.Context, userID, date string) ([]model.ScheduleItem, error)
}

// Composite concatenates the items of several sources in order. A failing
// source is logged and skipped unless every source fails.
type Composite []Source

func (c Composite) Day(ctx context.Context, userID, date string) ([]model.ScheduleItem, error) {
	out := make([]model.ScheduleItem, 0)
	var errs []error
	for _, s := range c {
		items, err := s.Day(ctx, userID, date)
		if err != nil {
			appLog.Error("schedule source failed", err, "user", userID, "date", date)
			errs = append(errs, err)
			continue
		}
		out = append(out, items...)
	}
	if len(c) > 0 && len(errs) == len(c) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
