package model

import "time"

// ScheduleItem is a single entry of a user's day schedule as exchanged over
// the API. Times are wall-clock "HH:MM" strings (24-hour) within the day the
// item was requested for.
type ScheduleItem struct {
	ID      int    `json:"id"`
	Org     string `json:"org"`
	Title   string `json:"title"`
	Place   string `json:"place"`
	Teacher string `json:"teacher"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	// Color is a CSS color token, e.g. "#5272E9".
	Color string `json:"color"`
}

// UserInfo is the profile returned by /api/getuser.
type UserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// ScheduleRequest is a free-form request a user sends about their schedule.
type ScheduleRequest struct {
	Subject string `json:"subject"`
	Details string `json:"details"`
}

// Occurrence represents a single concrete instance of a feed event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // feed source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Organizer   string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
