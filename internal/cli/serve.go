package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"shiftcal/internal/capture"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/scheduler"
	"shiftcal/internal/web"
	"shiftcal/internal/week"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout API, the week page and the snapshot",
		Long: `Serve the HTTP API and week page.

A cron schedule (refresh in the config) rebuilds the current week in the
background so requests are answered from the cache, and re-captures the
PNG snapshot when capture is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, noScheduler)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "disable the periodic refresh")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, noScheduler bool) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	appLog.Info("shiftcal starting", "version", version, "listen", cfg.Listen)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := web.NewServer(cfg, a.weeks, a.cache)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if !noScheduler && len(cfg.Roster) > 0 {
		refresher, err := newRefresher(a)
		if err != nil {
			return err
		}
		srv.SetRefreshStatus(refresher)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Warm the cache before the first tick. The listener may not be
			// bound yet, so the first capture waits for the schedule.
			if err := refresher.Warm(ctx); err != nil {
				appLog.Error("initial refresh failed", err)
			}
			refresher.Run(ctx)
		}()
	}

	err = web.StartServer(ctx, cfg, srv)
	cancel()
	wg.Wait()
	appLog.Info("shiftcal exiting")
	return err
}

func newRefresher(a *app) (*scheduler.Refresher, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}

	views := []week.View{week.ViewFull, week.ViewPrime}
	var captureFn scheduler.CaptureFunc
	if a.cfg.Capture.Enabled {
		opts := a.captureOptions("")
		captureFn = func(ctx context.Context) error {
			return capture.CaptureWeekPNG(ctx, opts)
		}
	}

	return scheduler.New(a.weeks, scheduler.Options{
		Spec:     a.cfg.RefreshCron,
		Location: loc,
		Days:     a.cfg.Days,
		Views:    views,
		Capture:  captureFn,
	})
}
