// Package roster loads rider shifts from iCalendar feeds and local files.
package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

// Source is one configured roster feed. Exactly one of URL or Path is
// expected; a Path ending in .json is read as a shift list, anything
// else as iCalendar.
type Source struct {
	ID          string
	Name        string
	URL         string
	Path        string
	FranchiseID string
}

// Loader turns configured sources into concrete shifts for a time range.
type Loader struct {
	Fetcher        *Fetcher
	Location       *time.Location
	MaxOccurrences int
}

// NewLoader returns a Loader that caches remote feeds under cacheDir.
func NewLoader(cacheDir string, loc *time.Location) *Loader {
	return &Loader{
		Fetcher:  NewFetcher(cacheDir),
		Location: loc,
	}
}

// Load reads every source and returns the shifts overlapping
// [rangeStart, rangeEnd). A failing source is logged and skipped; an
// error is returned only when every source failed.
func (l *Loader) Load(ctx context.Context, sources []Source, rangeStart, rangeEnd time.Time) ([]model.Shift, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}

	var (
		shifts []model.Shift
		errs   []error
		ok     int
	)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := l.loadSource(ctx, src, loc, rangeStart, rangeEnd)
		if err != nil {
			appLog.Error("roster source failed", err, "id", src.ID)
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
			continue
		}
		ok++
		shifts = append(shifts, got...)
	}

	if ok == 0 {
		return nil, errors.Join(errs...)
	}
	appLog.Info("roster loaded",
		"sources", len(sources),
		"failed", len(errs),
		"shift_count", len(shifts),
	)
	return shifts, nil
}

func (l *Loader) loadSource(ctx context.Context, src Source, loc *time.Location, from, to time.Time) ([]model.Shift, error) {
	var body []byte
	switch {
	case src.URL != "":
		if l.Fetcher == nil {
			return nil, errors.New("roster: no fetcher configured")
		}
		res, err := l.Fetcher.FetchOne(ctx, src)
		if err != nil {
			return nil, err
		}
		body = res.Body

	case src.Path != "":
		if strings.EqualFold(filepath.Ext(src.Path), ".json") {
			shifts, err := LoadJSON(src.Path)
			if err != nil {
				return nil, err
			}
			return inRange(shifts, src, loc, from, to), nil
		}
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, err
		}
		body = data

	default:
		return nil, errors.New("roster: source has neither url nor path")
	}

	parsed, err := ParseICS(src, body)
	if err != nil {
		return nil, err
	}
	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation:        loc,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerShift: l.MaxOccurrences,
	})
	if err != nil {
		return nil, err
	}
	return res.Shifts, nil
}

func inRange(shifts []model.Shift, src Source, loc *time.Location, from, to time.Time) []model.Shift {
	out := make([]model.Shift, 0, len(shifts))
	for _, sh := range shifts {
		if !overlaps(sh.StartAt, sh.EndAt, from, to) {
			continue
		}
		if sh.SourceID == "" {
			sh.SourceID = src.ID
		}
		if sh.FranchiseID == "" {
			sh.FranchiseID = src.FranchiseID
		}
		sh.StartAt = sh.StartAt.In(loc)
		sh.EndAt = sh.EndAt.In(loc)
		out = append(out, sh)
	}
	return out
}
