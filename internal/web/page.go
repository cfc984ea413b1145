package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"eschedule/internal/calendar"
	appLog "eschedule/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageRenderer struct {
	set *template.Template
}

var pageFuncs = template.FuncMap{
	"initial": func(name string) string {
		for _, r := range name {
			return strings.ToUpper(string(r))
		}
		return "E"
	},
}

func newPageRenderer() (*pageRenderer, error) {
	t, err := template.New("pages").Funcs(pageFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &pageRenderer{set: t}, nil
}

// render executes the named page into a buffer first so a template error
// still produces a clean 500.
func (p *pageRenderer) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p.set.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("page: render failed", err, "page", name)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// userView is the signed-in user as shown in the navigation and sidebars.
type userView struct {
	ID      string
	Name    string
	Avatar  string
	IsAdmin bool
}

func (s *Server) userView(id string) userView {
	return userView{ID: id, Name: s.cfg.User.Name, Avatar: s.cfg.User.Avatar, IsAdmin: s.cfg.User.IsAdmin}
}

// dayCell is one cell of the month sidebar.
type dayCell struct {
	Day      int
	Date     string
	Selected bool
	Today    bool
	Past     bool
}

type monthPage struct {
	calendarResponse
	Cells [][]dayCell
}

type dayPage struct {
	User   userView
	Active string

	Date      string
	Layout    layoutResponse
	Month     monthPage
	GridWidth float64
}

// handlePage renders the day view.
//
// GET /?date=YYYY-MM-DD&month=YYYY-MM
//
// A missing or malformed date shows today. month only moves the sidebar.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	today := calendar.Today(s.now(), s.loc)
	day, err := calendar.ParseDate(r.URL.Query().Get("date"), s.loc)
	if err != nil {
		day = today
	}

	shown := calendar.MonthOf(day)
	if m, err := calendar.ParseMonth(r.URL.Query().Get("month")); err == nil {
		shown = m
	}

	userID := IdentityFrom(r.Context())
	lay, err := s.dayLayout(r.Context(), userID, day)
	if err != nil {
		appLog.Error("page: source failed", err, "user", userID)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	cols := lay.Columns
	if cols == 0 {
		cols = 1
	}
	data := dayPage{
		User:      s.userView(userID),
		Active:    "schedule",
		Date:      lay.Date,
		Layout:    lay,
		Month:     s.monthPage(shown, day, today),
		GridWidth: s.geo.Left(cols-1) + s.geo.EventWidth,
	}

	s.page.render(w, "day.html", data)
}

type profilePage struct {
	User   userView
	Active string
}

// handleProfile renders the profile of the user identified by the cookie.
//
// GET /profile
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.page.render(w, "profile.html", profilePage{
		User:   s.userView(IdentityFrom(r.Context())),
		Active: "profile",
	})
}

func (s *Server) monthPage(m calendar.Month, selected, today time.Time) monthPage {
	view := s.monthView(m)
	cells := make([][]dayCell, 0, len(view.Weeks))
	for _, week := range view.Weeks {
		row := make([]dayCell, 7)
		for i, d := range week {
			if d == 0 {
				continue
			}
			date := m.Date(d, s.loc)
			row[i] = dayCell{
				Day:      d,
				Date:     calendar.FormatDate(date),
				Selected: date.Equal(selected),
				Today:    date.Equal(today),
				Past:     date.Before(today),
			}
		}
		cells = append(cells, row)
	}
	return monthPage{calendarResponse: view, Cells: cells}
}
