package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"eschedule/internal/calendar"
	"eschedule/internal/ics"
	"eschedule/internal/layout"
	appLog "eschedule/internal/log"
	"eschedule/internal/model"
)

const maxRequestBody = 64 << 10

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	msg, ok := os.LookupEnv("PING_MESSAGE")
	if !ok {
		msg = "ping"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// handleGetMySchedule returns the raw schedule items of a user.
//
// GET /api/getmyschedule/{id}
// GET /api/getmyschedule/{id}/{date}
//
// The date is passed to the source as is; sources decide how to treat a
// missing or malformed one.
func (s *Server) handleGetMySchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	date := r.PathValue("date")

	items, err := s.src.Day(r.Context(), id, date)
	if err != nil {
		appLog.Error("getmyschedule: source failed", err, "user", id, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	if items == nil {
		items = []model.ScheduleItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserInfo{
		ID:      r.PathValue("id"),
		Name:    s.cfg.User.Name,
		Avatar:  s.cfg.User.Avatar,
		IsAdmin: s.cfg.User.IsAdmin,
	})
}

type newRequestResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleNewRequest accepts a schedule request. Requests are only logged.
func (s *Server) handleNewRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.ScheduleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный формат заявки.")
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Details = strings.TrimSpace(req.Details)
	if req.Subject == "" || req.Details == "" {
		writeError(w, http.StatusBadRequest, "Укажите тему и текст заявки.")
		return
	}

	ticket := uuid.NewString()
	appLog.Info("schedule request accepted",
		"ticket", ticket,
		"user", id,
		"cookie_user", IdentityFrom(r.Context()),
		"subject", req.Subject,
		"details_len", len(req.Details),
	)
	writeJSON(w, http.StatusCreated, newRequestResponse{ID: ticket, Status: "accepted"})
}

// slotDTO is one hour label of the time axis.
type slotDTO struct {
	Label string  `json:"label"`
	Top   float64 `json:"top"`
}

// placedDTO is a schedule item with its position on the day grid.
type placedDTO struct {
	model.ScheduleItem
	Column int     `json:"column"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// skippedDTO describes an item left out of the layout.
type skippedDTO struct {
	ID     int    `json:"id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type layoutResponse struct {
	Date       string       `json:"date"`
	Title      string       `json:"title"`
	Columns    int          `json:"columns"`
	AxisHeight float64      `json:"axis_height"`
	Slots      []slotDTO    `json:"slots"`
	Events     []placedDTO  `json:"events"`
	Skipped    []skippedDTO `json:"skipped"`
}

// dayLayout loads the schedule of userID for day and lays it out. Items that
// fail validation are reported in Skipped instead of failing the whole day.
func (s *Server) dayLayout(ctx context.Context, userID string, day time.Time) (layoutResponse, error) {
	date := calendar.FormatDate(day)
	items, err := s.src.Day(ctx, userID, date)
	if err != nil {
		return layoutResponse{}, err
	}

	events, errs := layout.FromItems(items)
	placed := layout.Arrange(events, s.geo)

	resp := layoutResponse{
		Date:       date,
		Title:      calendar.DayTitle(day),
		Columns:    layout.Columns(placed),
		AxisHeight: s.geo.AxisHeight(),
		Slots:      make([]slotDTO, 0),
		Events:     make([]placedDTO, 0, len(placed)),
		Skipped:    make([]skippedDTO, 0, len(errs)),
	}
	for i, label := range s.geo.Slots() {
		resp.Slots = append(resp.Slots, slotDTO{Label: label, Top: float64(i) * s.geo.PixelsPerHour})
	}
	for _, p := range placed {
		resp.Events = append(resp.Events, placedDTO{
			ScheduleItem: p.Item,
			Column:       p.Column,
			Top:          p.Top,
			Height:       p.Height,
			Left:         p.Left,
			Width:        s.geo.EventWidth,
		})
	}
	for _, e := range errs {
		var ve *layout.ValidationError
		if !errors.As(e, &ve) {
			continue
		}
		appLog.Debug("layout: skipping invalid item", "user", userID, "date", date, "id", ve.EventID, "err", ve.Err)
		resp.Skipped = append(resp.Skipped, skippedDTO{
			ID:     ve.EventID,
			Field:  ve.Field,
			Value:  ve.Value,
			Reason: ve.Err.Error(),
		})
	}
	return resp, nil
}

// handleLayout returns the positioned events of a day.
//
// GET /api/layout/{id}/{date}
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	day, err := calendar.ParseDate(r.PathValue("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.dayLayout(r.Context(), id, day)
	if err != nil {
		appLog.Error("layout: source failed", err, "user", id)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type calendarResponse struct {
	Month    string   `json:"month"`
	Title    string   `json:"title"`
	Prev     string   `json:"prev"`
	Next     string   `json:"next"`
	Weekdays []string `json:"weekdays"`
	// Weeks holds day numbers; zero marks a cell outside the month.
	Weeks [][7]int `json:"weeks"`
}

func (s *Server) monthView(m calendar.Month) calendarResponse {
	ws := calendar.WeekStart(s.cfg.WeekStart)
	headers := calendar.WeekdayHeaders(ws)
	return calendarResponse{
		Month:    m.String(),
		Title:    calendar.MonthName(m.Month) + " " + strconv.Itoa(m.Year),
		Prev:     m.Prev().String(),
		Next:     m.Next().String(),
		Weekdays: headers[:],
		Weeks:    m.Grid(ws),
	}
}

// handleCalendar returns the month grid for the sidebar.
//
// GET /api/calendar/{month}
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	m, err := calendar.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.monthView(m))
}

// handleExport serves a day as an iCalendar file.
//
// GET /schedule/{id}/{date}.ics
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file := r.PathValue("file")
	date, ok := strings.CutSuffix(file, ".ics")
	if !ok {
		http.NotFound(w, r)
		return
	}
	day, err := calendar.ParseDate(date, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.src.Day(r.Context(), id, date)
	if err != nil {
		appLog.Error("export: source failed", err, "user", id, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	body, errs := ics.ExportDay(id, day, items, s.now())
	if len(errs) > 0 {
		appLog.Info("export: invalid items left out", "user", id, "date", date, "count", len(errs))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+date+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
