// Package scheduler periodically rebuilds the current week so requests
// are served from a warm cache, and optionally refreshes the snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/week"
)

// WeekRefresher rebuilds and stores a week grid.
type WeekRefresher interface {
	Refresh(ctx context.Context, start time.Time, days int, view week.View) (week.Week, error)
}

// CaptureFunc renders the snapshot after a successful refresh.
type CaptureFunc func(ctx context.Context) error

// Status describes the last run.
type Status struct {
	LastRun   time.Time
	LastError error
	Runs      int
	Segments  int
}

// Refresher runs RunOnce on a cron schedule.
type Refresher struct {
	weeks   WeekRefresher
	capture CaptureFunc
	days    int
	views   []week.View

	cron    *cron.Cron
	entryID cron.EntryID

	mu     sync.Mutex
	status Status
}

// Options configures a Refresher.
type Options struct {
	// Spec is a standard five-field cron expression.
	Spec     string
	Location *time.Location
	Days     int
	// Views are rebuilt on each run; empty means full only.
	Views   []week.View
	Capture CaptureFunc
}

// New validates the cron spec and returns a stopped Refresher.
func New(weeks WeekRefresher, opts Options) (*Refresher, error) {
	if weeks == nil {
		return nil, errors.New("scheduler: no week refresher")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if len(opts.Views) == 0 {
		opts.Views = []week.View{week.ViewFull}
	}

	r := &Refresher{
		weeks:   weeks,
		capture: opts.Capture,
		days:    opts.Days,
		views:   opts.Views,
	}
	logger := cronLogger{}
	r.cron = cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := r.cron.AddFunc(opts.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", opts.Spec, err)
	}
	r.entryID = id
	return r, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits
// for a running job to finish.
func (r *Refresher) Run(ctx context.Context) {
	r.cron.Start()
	appLog.Info("scheduler started", "views", len(r.views), "days", r.days, "next", r.Next())

	<-ctx.Done()
	stopped := r.cron.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
}

// Next returns the next scheduled run, or the zero time if not started.
func (r *Refresher) Next() time.Time {
	return r.cron.Entry(r.entryID).Next
}

// RunOnce rebuilds the current week for every configured view and then
// runs the capture, if any. Capture is skipped when every view failed.
func (r *Refresher) RunOnce(ctx context.Context) error {
	return r.refresh(ctx, true)
}

// Warm rebuilds every view like RunOnce but never captures, so it can
// run before the page being captured is served.
func (r *Refresher) Warm(ctx context.Context) error {
	return r.refresh(ctx, false)
}

func (r *Refresher) refresh(ctx context.Context, withCapture bool) error {
	var (
		errs     []error
		segments int
		ok       int
	)
	for _, view := range r.views {
		w, err := r.weeks.Refresh(ctx, time.Time{}, r.days, view)
		if err != nil {
			errs = append(errs, fmt.Errorf("view %s: %w", view, err))
			continue
		}
		ok++
		if view == week.ViewFull {
			segments = countSegments(w)
		}
	}

	if withCapture && ok > 0 && r.capture != nil {
		if err := r.capture(ctx); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}

	err := errors.Join(errs...)
	r.mu.Lock()
	r.status.LastRun = time.Now()
	r.status.LastError = err
	r.status.Runs++
	r.status.Segments = segments
	r.mu.Unlock()

	if err == nil {
		appLog.Info("refresh complete", "views", len(r.views), "segments", segments)
	}
	return err
}

// Status returns a copy of the last run status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func countSegments(w week.Week) int {
	n := 0
	for _, d := range w.Days {
		n += len(d.Events)
	}
	return n
}

// cronLogger routes cron's own messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
