package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eschedule/internal/calendar"
	"eschedule/internal/capture"
	"eschedule/internal/config"
	"eschedule/internal/ics"
	appLog "eschedule/internal/log"
	"eschedule/internal/schedule"
	"eschedule/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	snapshot   string
	date       string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	defer appLog.Sync()

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
		loc = time.Local
	}

	appLog.Info("eschedule starting",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"mock", conf.Sources.Mock,
		"ics_count", len(conf.Sources.ICS),
		"snapshot", flags.snapshot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sources schedule.Composite
	if conf.Sources.Mock {
		sources = append(sources, schedule.MockSource{})
	}
	var feeds *schedule.ICSSource
	if len(conf.Sources.ICS) > 0 {
		feeds = schedule.NewICSSource(ics.NewFetcher(conf.CacheDir), icsSources(conf.Sources.ICS), loc)
		sources = append(sources, feeds)
	}

	if flags.snapshot != "" {
		// The snapshot server only listens on loopback.
		conf.BasicAuth = nil
	}
	srv, err := web.NewServer(conf, sources, loc)
	if err != nil {
		appLog.Error("failed to build web server", err)
		os.Exit(1)
	}

	if flags.snapshot != "" {
		if err := runSnapshot(ctx, srv, feeds, loc, flags); err != nil {
			appLog.Error("snapshot failed", err, "output", flags.snapshot)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, srv, feeds, loc); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("eschedule exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render the day page to this PNG path and exit")
	flag.StringVar(&cfg.date, "date", "", "Day to render with -snapshot (YYYY-MM-DD, default today)")

	flag.Parse()

	return cfg
}

func icsSources(in []config.ICSConfig) []ics.Source {
	out := make([]ics.Source, 0, len(in))
	for _, c := range in {
		if c.URL == "" && c.Path == "" {
			appLog.Info("ignoring ICS source without url or path", "id", c.ID, "name", c.Name)
			continue
		}
		id := c.ID
		if id == "" {
			switch {
			case c.Name != "":
				id = c.Name
			case c.URL != "":
				id = c.URL
			default:
				id = c.Path
			}
		}
		out = append(out, ics.Source{ID: id, Name: c.Name, URL: c.URL, Path: c.Path, Color: c.Color})
	}
	return out
}

// serve runs the HTTP server and the feed refresher until ctx is cancelled.
func serve(ctx context.Context, conf *config.Config, srv *web.Server, feeds *schedule.ICSSource, loc *time.Location) error {
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var refresher *schedule.Refresher
	if feeds != nil {
		refresher = schedule.NewRefresher(conf.RefreshCron, loc, feeds)
		go func() {
			if err := refresher.Start(ctx); err != nil {
				appLog.Error("refresher failed to start", err, "spec", conf.RefreshCron)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	if refresher != nil {
		refresher.Stop()
	}
	return nil
}

// runSnapshot serves the page on an ephemeral port just long enough to
// capture it.
func runSnapshot(ctx context.Context, srv *web.Server, feeds *schedule.ICSSource, loc *time.Location, flags flagConfig) error {
	if feeds != nil {
		if err := feeds.Reload(ctx); err != nil {
			appLog.Error("initial feed load failed; rendering without feeds", err)
		}
	}

	date := flags.date
	if date == "" {
		date = calendar.FormatDate(calendar.Today(time.Now(), loc))
	} else if _, err := calendar.ParseDate(date, loc); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	target := url.URL{Scheme: "http", Host: ln.Addr().String(), Path: "/", RawQuery: url.Values{"date": {date}}.Encode()}
	return capture.CapturePNG(ctx, capture.CaptureOptions{
		URL:        target.String(),
		OutputPath: flags.snapshot,
	})
}
