package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"eschedule/internal/layout"
	"eschedule/internal/model"
)

const productID = "-//eschedule//day export//RU"

// ExportDay renders a day schedule as a VCALENDAR document. day must be
// midnight of the exported date in the display timezone. Items whose times do
// not validate are left out and reported in the returned error slice.
func ExportDay(userID string, day time.Time, items []model.ScheduleItem, now time.Time) ([]byte, []error) {
	events, errs := layout.FromItems(items)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	date := day.Format("20060102")
	for _, ev := range events {
		it := ev.Item
		ve := cal.AddEvent(fmt.Sprintf("%d-%s-%s@eschedule", it.ID, date, userID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(wallTime(day, ev.Start))
		ve.SetEndAt(wallTime(day, ev.End))
		ve.SetSummary(it.Title)
		if it.Place != "" {
			ve.SetLocation(it.Place)
		}
		if it.Org != "" {
			ve.SetDescription(it.Org)
		}
		if it.Teacher != "" {
			ve.SetOrganizer("mailto:noreply@eschedule.local", ical.WithCN(it.Teacher))
		}
		if it.Color != "" {
			ve.SetProperty(ical.ComponentProperty("COLOR"), it.Color)
		}
	}

	return []byte(cal.Serialize()), errs
}

// wallTime returns the instant showing minutes on the clock of day's zone.
// 24:00 is midnight of the next day.
func wallTime(day time.Time, minutes int) time.Time {
	if minutes >= layout.MinutesPerDay {
		return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
