package schedule

import (
	"context"

	"eschedule/internal/calendar"
	"eschedule/internal/model"
)

// MockSource serves fixed fixtures. The set is chosen by the day of month:
// multiples of three get the evening-heavy set, other even days the base set,
// odd days a single early session. Requests without a usable date get the
// base set. The user id is ignored.
type MockSource struct{}

func (MockSource) Day(_ context.Context, _ string, date string) ([]model.ScheduleItem, error) {
	return clone(fixturesFor(date)), nil
}

func fixturesFor(date string) []model.ScheduleItem {
	day, ok := calendar.DayOfMonth(date)
	switch {
	case !ok:
		return baseFixtures
	case day%3 == 0:
		return altAFixtures
	case day%2 == 0:
		return baseFixtures
	default:
		return altBFixtures
	}
}

func clone(items []model.ScheduleItem) []model.ScheduleItem {
	out := make([]model.ScheduleItem, len(items))
	copy(out, items)
	return out
}

var baseFixtures = []model.ScheduleItem{
	{
		ID:        1,
		Org:       "Организация 1",
		Title:     "Занятие №1",
		Place:     "Спортивный зал №2",
		Teacher:   "Константинопольский К. К.",
		StartTime: "18:00",
		EndTime:   "20:00",
		Color:     "#5272E9",
	},
	{
		ID:        2,
		Org:       "Организация 1",
		Title:     "Занятие №2",
		Place:     "Спортивный зал №2",
		Teacher:   "Константинопольский К. К.",
		StartTime: "11:30",
		EndTime:   "12:50",
		Color:     "#5272E9",
	},
}

var altAFixtures = []model.ScheduleItem{
	{
		ID:        3,
		Org:       "Организация 2",
		Title:     "Йога",
		Place:     "Зал 1",
		Teacher:   "Иванова И. И.",
		StartTime: "09:00",
		EndTime:   "10:00",
		Color:     "#24B0C9",
	},
	{
		ID:        4,
		Org:       "Организация 3",
		Title:     "Силовая тренировка",
		Place:     "Зал 3",
		Teacher:   "Петров П. П.",
		StartTime: "19:00",
		EndTime:   "21:00",
		Color:     "#EA4B4B",
	},
	{
		ID:        10,
		Org:       "Организация 2",
		Title:     "Йога",
		Place:     "Зал 1",
		Teacher:   "Иванова И. И.",
		StartTime: "19:00",
		EndTime:   "20:00",
		Color:     "#24B0C9",
	},
	{
		ID:        11,
		Org:       "Организация 2",
		Title:     "Йога",
		Place:     "Зал 1",
		Teacher:   "Иванова И. И.",
		StartTime: "16:00",
		EndTime:   "17:00",
		Color:     "#24B0C9",
	},
}

var altBFixtures = []model.ScheduleItem{
	{
		ID:        5,
		Org:       "Организация 4",
		Title:     "Плавание",
		Place:     "Бассейн",
		Teacher:   "Сергеев С. С.",
		StartTime: "07:30",
		EndTime:   "08:30",
		Color:     "#39C07B",
	},
}
