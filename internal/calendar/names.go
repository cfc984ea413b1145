package calendar

import (
	"fmt"
	"time"
)

var (
	monthNames = [12]string{
		"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}
	monthNamesGenitive = [12]string{
		"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря",
	}
	// Indexed by time.Weekday (Sunday first).
	weekdayShort = [7]string{"ВС", "ПН", "ВТ", "СР", "ЧТ", "ПТ", "СБ"}
)

// MonthName returns the Russian name of m for headings, e.g. "Октябрь".
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// DayTitle formats t as "15 октября 2026".
func DayTitle(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthNamesGenitive[t.Month()-1], t.Year())
}

// WeekdayHeaders returns the short weekday labels in grid column order.
func WeekdayHeaders(weekStart time.Weekday) [7]string {
	var out [7]string
	for i := range out {
		out[i] = weekdayShort[(int(weekStart)+i)%7]
	}
	return out
}
