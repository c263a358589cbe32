package cli

import (
	"context"
	"net/url"
	"strings"

	"shiftcal/internal/cache"
	"shiftcal/internal/capture"
	"shiftcal/internal/config"
	"shiftcal/internal/roster"
	"shiftcal/internal/week"
)

// app holds the components shared by serve, week and snapshot.
type app struct {
	cfg   *config.Config
	cache cache.Cache
	weeks *week.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(ctx, cache.Options{
		Backend:       cfg.Cache.Backend,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		Prefix:        cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, err
	}

	svc := week.NewService(roster.NewLoader(cfg.CacheDir, loc), cfg.Sources(), c, cfg.LayoutOptions(), loc)
	svc.TTL = cfg.CacheTTL()
	svc.WeekStart = cfg.WeekStart

	return &app{cfg: cfg, cache: c, weeks: svc}, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}

// captureOptions builds snapshot options, defaulting the URL to the
// local /week page in the configured view.
func (a *app) captureOptions(override string) capture.CaptureOptions {
	target := override
	if target == "" {
		target = a.cfg.Capture.URL
	}
	if target == "" {
		target = localURL(a.cfg.Listen) + "/week?view=" + url.QueryEscape(a.cfg.View)
	}
	opts := capture.CaptureOptions{
		URL:        target,
		OutputPath: a.cfg.Capture.Output,
		Width:      a.cfg.Capture.Width,
		Height:     a.cfg.Capture.Height,
		Timeout:    a.cfg.CaptureTimeout(),
	}
	if a.cfg.BasicAuth != nil {
		opts.Username = a.cfg.BasicAuth.Username
		opts.Password = a.cfg.BasicAuth.Password
	}
	return opts
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(listen string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	host = strings.Replace(host, "0.0.0.0:", "127.0.0.1:", 1)
	return "http://" + host
}
