package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS feed whose events are merged into the
// schedule. Exactly one of URL or Path is expected.
type ICSConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label; it is shown as the event organization.
	Name string `yaml:"name" json:"name"`
	// URL is a remote ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Color is the CSS color used for events from this feed.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// IdentityConfig controls the cookie-based pseudo identity.
type IdentityConfig struct {
	CookieName    string `yaml:"cookie_name" json:"cookie_name"`
	DefaultUserID string `yaml:"default_user_id" json:"default_user_id"`
	CookieDays    int    `yaml:"cookie_days" json:"cookie_days"`
}

// UserConfig is the profile served for every user id.
type UserConfig struct {
	Name    string `yaml:"name" json:"name"`
	IsAdmin bool   `yaml:"is_admin" json:"is_admin"`
	// Avatar is an image URL. Pages fall back to the name's initial.
	Avatar  string `yaml:"avatar,omitempty" json:"avatar,omitempty"`
}

// LayoutConfig holds the pixel constants of the day view.
type LayoutConfig struct {
	StartHour     int     `yaml:"start_hour" json:"start_hour"`
	EndHour       int     `yaml:"end_hour" json:"end_hour"`
	PixelsPerHour float64 `yaml:"pixels_per_hour" json:"pixels_per_hour"`
	TopMargin     float64 `yaml:"top_margin" json:"top_margin"`
	MinHeight     float64 `yaml:"min_height" json:"min_height"`
	ExtraMargin   float64 `yaml:"extra_margin" json:"extra_margin"`
	ColumnWidth   float64 `yaml:"column_width" json:"column_width"`
	EventWidth    float64 `yaml:"event_width" json:"event_width"`
}

// SourcesConfig lists where schedule data comes from.
type SourcesConfig struct {
	// Mock enables the built-in fixture schedule.
	Mock bool `yaml:"mock" json:"mock"`
	// ICS is the list of ICS feeds merged on top of the fixtures.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to decide "today" and to place ICS
	// events on the wall clock (e.g. "Europe/Moscow").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in the month sidebar. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to reload ICS feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores fetched ICS bodies and their HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Identity IdentityConfig `yaml:"identity" json:"identity"`
	User     UserConfig     `yaml:"user" json:"user"`
	Layout   LayoutConfig   `yaml:"layout" json:"layout"`
	Sources  SourcesConfig  `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultLayout returns the pixel constants of the stock day view.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		StartHour:     7,
		EndHour:       23,
		PixelsPerHour: 72,
		TopMargin:     20,
		MinHeight:     114,
		ExtraMargin:   20,
		ColumnWidth:   220,
		EventWidth:    200,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Moscow",
		WeekStart:   "monday",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		CacheDir:    "./cache",
		Identity: IdentityConfig{
			CookieName:    "userId",
			DefaultUserID: "12345",
			CookieDays:    7,
		},
		User: UserConfig{
			Name:    "Вячеслав",
			IsAdmin: true,
		},
		Layout: DefaultLayout(),
		Sources: SourcesConfig{
			Mock: true,
			ICS:  []ICSConfig{},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}

	if c.Identity.CookieName == "" {
		c.Identity.CookieName = def.Identity.CookieName
	}
	if c.Identity.DefaultUserID == "" {
		c.Identity.DefaultUserID = def.Identity.DefaultUserID
	}
	if c.Identity.CookieDays <= 0 {
		c.Identity.CookieDays = def.Identity.CookieDays
	}
	if c.User.Name == "" {
		c.User.Name = def.User.Name
	}

	c.Layout.normalize()

	if c.Sources.ICS == nil {
		c.Sources.ICS = []ICSConfig{}
	}
}

func (l *LayoutConfig) normalize() {
	def := DefaultLayout()
	if l.StartHour < 0 || l.StartHour > 23 {
		l.StartHour = def.StartHour
	}
	if l.EndHour <= 0 || l.EndHour > 23 || l.EndHour < l.StartHour {
		l.EndHour = def.EndHour
	}
	if l.PixelsPerHour <= 0 {
		l.PixelsPerHour = def.PixelsPerHour
	}
	if l.MinHeight <= 0 {
		l.MinHeight = def.MinHeight
	}
	if l.ColumnWidth <= 0 {
		l.ColumnWidth = def.ColumnWidth
	}
	if l.EventWidth <= 0 {
		l.EventWidth = def.EventWidth
	}
	// TopMargin and ExtraMargin may legitimately be zero.
	if l.TopMargin < 0 {
		l.TopMargin = 0
	}
	if l.ExtraMargin < 0 {
		l.ExtraMargin = 0
	}
}

// Load reads the YAML config at path. Keys missing from the file keep their
// default value. A missing file is created with the defaults and 0600
// permissions; if that write fails the defaults are still returned along
// with the error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, Save(path, cfg)
	case err != nil:
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save normalizes cfg and writes it to path, replacing any existing file
// atomically. The parent directory is created with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// Save writes c to path; see the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eschedule-config-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Chmod(name, perm); err != nil {
		return err
	}
	return os.Rename(name, path)
}
