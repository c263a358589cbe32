package week

import (
	"context"
	"errors"
	"time"

	"shiftcal/internal/cache"
	"shiftcal/internal/layout"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
	"shiftcal/internal/roster"
)

// ShiftLoader returns the shifts of the given sources overlapping [from, to).
type ShiftLoader interface {
	Load(ctx context.Context, sources []roster.Source, from, to time.Time) ([]model.Shift, error)
}

// Service builds week grids from roster sources and memoizes them.
type Service struct {
	Loader    ShiftLoader
	Sources   []roster.Source
	Cache     cache.Cache
	TTL       time.Duration
	Layout    layout.Options
	Location  *time.Location
	WeekStart string

	now func() time.Time
}

// NewService wires a Service. A nil cache disables memoization.
func NewService(loader ShiftLoader, sources []roster.Source, c cache.Cache, opts layout.Options, loc *time.Location) *Service {
	if c == nil {
		c = cache.NewNull()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		Loader:    loader,
		Sources:   sources,
		Cache:     c,
		TTL:       15 * time.Minute,
		Layout:    opts,
		Location:  loc,
		WeekStart: "monday",
		now:       time.Now,
	}
}

// CurrentStart returns the first day of the current week.
func (s *Service) CurrentStart() time.Time {
	return StartOfWeek(s.clock().In(s.Location), s.WeekStart)
}

// Week returns the laid-out grid for days columns from start, served from
// the cache when possible. A zero start means the current week.
func (s *Service) Week(ctx context.Context, start time.Time, days int, view View) (Week, error) {
	start, days = s.normalize(start, days)

	var w Week
	err := cache.GetJSON(ctx, s.Cache, s.key(start, days, view), &w)
	if err == nil {
		appLog.Debug("week cache hit", "start", w.Start, "view", view)
		return w, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		appLog.Error("week cache read failed", err)
	}
	return s.Refresh(ctx, start, days, view)
}

// Refresh rebuilds the grid from the roster sources and stores it.
func (s *Service) Refresh(ctx context.Context, start time.Time, days int, view View) (Week, error) {
	start, days = s.normalize(start, days)
	if s.Loader == nil {
		return Week{}, roster.ErrNoSources
	}

	end := start.AddDate(0, 0, days)
	shifts, err := s.Loader.Load(ctx, s.Sources, start, end)
	if err != nil {
		return Week{}, err
	}

	w := Build(shifts, start, days, view, s.Layout)
	if err := cache.SetJSON(ctx, s.Cache, s.key(start, days, view), w, s.TTL); err != nil {
		appLog.Error("week cache write failed", err)
	}
	appLog.Info("week built", "start", w.Start, "days", days, "view", view, "shift_count", len(shifts))
	return w, nil
}

func (s *Service) normalize(start time.Time, days int) (time.Time, int) {
	if start.IsZero() {
		start = s.CurrentStart()
	}
	y, m, d := start.In(s.Location).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, s.Location)
	if days <= 0 {
		days = 7
	}
	return start, days
}

func (s *Service) key(start time.Time, days int, view View) string {
	o := s.Layout
	return cache.Key("week",
		start.Format(DateLayout), s.Location.String(), days, view,
		o.ContainerWidthPx, o.MinCardWidthPx, o.DeckOffsetPx, o.MinHeightMinutes,
		o.Midnight, o.Expand,
	)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
