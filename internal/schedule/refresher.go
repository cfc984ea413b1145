package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eschedule/internal/log"
)

// Reloader is anything that can refresh its data on demand.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Refresher reloads a source on a cron schedule.
type Refresher struct {
	cron   *cron.Cron
	spec   string
	target Reloader
}

// NewRefresher creates a refresher running spec (standard 5-field cron) in loc.
func NewRefresher(spec string, loc *time.Location, target Reloader) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		target: target,
	}
}

// Start performs an initial reload, schedules the periodic one and blocks
// until ctx is done. A failing initial reload is logged, not returned.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.reload(ctx) }); err != nil {
		return fmt.Errorf("add refresh job %q: %w", r.spec, err)
	}

	r.reload(ctx)

	r.cron.Start()
	appLog.Info("refresher started", "spec", r.spec)

	<-ctx.Done()
	return nil
}

// Stop waits for a running reload to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	appLog.Info("refresher stopped")
}

func (r *Refresher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := r.target.Reload(ctx); err != nil {
		appLog.Error("scheduled reload failed", err)
		return
	}
	appLog.Debug("scheduled reload done", "took", time.Since(start))
}
