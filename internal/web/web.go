package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"eschedule/internal/config"
	"eschedule/internal/layout"
	appLog "eschedule/internal/log"
	"eschedule/internal/schedule"
)

// Server serves the schedule API and the server-rendered day page.
type Server struct {
	cfg *config.Config
	src schedule.Source
	loc *time.Location
	geo layout.Geometry
	mux *http.ServeMux

	now  func() time.Time
	page *pageRenderer
}

// NewServer constructs a new Server reading schedules from src. Dates without
// an explicit value resolve to "today" in loc.
func NewServer(cfg *config.Config, src schedule.Source, loc *time.Location) (*Server, error) {
	if loc == nil {
		loc = time.Local
	}
	page, err := newPageRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:  cfg,
		src:  src,
		loc:  loc,
		geo:  geometryFrom(cfg.Layout),
		mux:  http.NewServeMux(),
		now:  time.Now,
		page: page,
	}
	s.registerRoutes()
	return s, nil
}

func geometryFrom(l config.LayoutConfig) layout.Geometry {
	return layout.Geometry{
		StartHour:     l.StartHour,
		EndHour:       l.EndHour,
		PixelsPerHour: l.PixelsPerHour,
		TopMargin:     l.TopMargin,
		MinHeight:     l.MinHeight,
		ExtraMargin:   l.ExtraMargin,
		ColumnWidth:   l.ColumnWidth,
		EventWidth:    l.EventWidth,
	}
}

// Handler returns the underlying http.Handler for this server, wrapped in
// request logging, optional basic auth and the identity cookie.
func (s *Server) Handler() http.Handler {
	h := s.identityMiddleware(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestLogMiddleware(h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/ping", s.handlePing)
	s.mux.HandleFunc("GET /api/getmyschedule/{id}", s.handleGetMySchedule)
	s.mux.HandleFunc("GET /api/getmyschedule/{id}/{date}", s.handleGetMySchedule)
	s.mux.HandleFunc("GET /api/getuser/{id}", s.handleGetUser)
	s.mux.HandleFunc("POST /api/newrequest/{id}", s.handleNewRequest)
	s.mux.HandleFunc("GET /api/layout/{id}/{date}", s.handleLayout)
	s.mux.HandleFunc("GET /api/calendar/{month}", s.handleCalendar)
	s.mux.HandleFunc("GET /schedule/{id}/{file}", s.handleExport)
	s.mux.HandleFunc("GET /profile", s.handleProfile)
	s.mux.HandleFunc("GET /{$}", s.handlePage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eschedule", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type identityKey struct{}

// IdentityFrom returns the user id attached by the identity middleware.
func IdentityFrom(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// identityMiddleware reads the user id cookie. Visitors without one get the
// default id, which is also written back as a cookie.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	idc := s.cfg.Identity

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(idc.CookieName); err == nil {
			id = c.Value
		}
		if id == "" {
			id = idc.DefaultUserID
			maxAge := time.Duration(idc.CookieDays) * 24 * time.Hour
			http.SetCookie(w, &http.Cookie{
				Name:     idc.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge / time.Second),
				Expires:  s.now().Add(maxAge),
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogMiddleware tags every request with an id and logs its outcome.
func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		appLog.Debug("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Message string `json:"message"`
	}
	writeJSON(w, status, errResp{Message: msg})
}
