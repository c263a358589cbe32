package roster

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

const defaultMaxOccurrencesPerShift = 500

// ExpandConfig controls how recurring shifts are expanded.
type ExpandConfig struct {
	// DisplayLocation is the timezone all shifts are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the window of returned shifts.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerShift caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerShift.
	MaxOccurrencesPerShift int
}

// ExpandResult wraps the expanded shifts and the UIDs that hit the cap.
type ExpandResult struct {
	Shifts    []model.Shift
	Truncated []string
}

// Expand turns parsed shifts into concrete shifts overlapping the range,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. The result is
// sorted by start time, then ID.
func Expand(parsed []ParsedShift, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("roster: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerShift <= 0 {
		cfg.MaxOccurrencesPerShift = defaultMaxOccurrencesPerShift
	}

	baseByUID := make(map[string][]ParsedShift)
	overridesByUID := make(map[string][]ParsedShift)
	var uids []string
	for _, ps := range parsed {
		if ps.IsOverride && ps.Recurrence != nil {
			overridesByUID[ps.UID] = append(overridesByUID[ps.UID], ps)
			continue
		}
		if _, seen := baseByUID[ps.UID]; !seen {
			uids = append(uids, ps.UID)
		}
		baseByUID[ps.UID] = append(baseByUID[ps.UID], ps)
	}

	for _, uid := range uids {
		truncated := false
		for _, ps := range baseByUID[uid] {
			shifts, hitCap := expandShift(ps, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Shifts = append(result.Shifts, shifts...)
		}
		if truncated {
			result.Truncated = append(result.Truncated, uid)
			appLog.Error("roster: truncated recurring shift",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerShift,
			)
		}
	}

	sort.SliceStable(result.Shifts, func(i, j int) bool {
		a, b := result.Shifts[i], result.Shifts[j]
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func expandShift(ps ParsedShift, overrides []ParsedShift, cfg ExpandConfig) ([]model.Shift, bool) {
	if ps.RawRRule == "" {
		start, end, src := ps.Start, ps.End, ps
		if o, ok := findOverride(overrides, start); ok {
			start, end, src = o.Start, o.End, o
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []model.Shift{makeShift(src, ps.UID, start, end, cfg.DisplayLocation)}, false
	}
	return expandRecurring(ps, overrides, cfg)
}

func expandRecurring(ps ParsedShift, overrides []ParsedShift, cfg ExpandConfig) ([]model.Shift, bool) {
	r, err := rrule.StrToRRule(ps.RawRRule)
	if err != nil {
		appLog.Error("roster: failed to parse RRULE", err, "uid", ps.UID, "rrule", ps.RawRRule)
		return nil, false
	}
	r.DTStart(ps.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ps.ExDates {
		set.ExDate(ex.In(ps.Start.Location()))
	}

	dur := ps.End.Sub(ps.Start)
	loc := ps.Start.Location()
	// Shifts that started before the window may still run into it.
	occStarts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(occStarts) > cfg.MaxOccurrencesPerShift {
		occStarts = occStarts[:cfg.MaxOccurrencesPerShift]
		hitCap = true
	}

	out := make([]model.Shift, 0, len(occStarts))
	for _, occStart := range occStarts {
		start, end, src := occStart, occStart.Add(dur), ps
		if o, ok := findOverride(overrides, occStart); ok {
			start, end, src = o.Start, o.End, o
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		id := fmt.Sprintf("%s@%s", ps.UID, occStart.UTC().Format("20060102T150405Z"))
		out = append(out, makeShift(src, id, start, end, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedShift, start time.Time) (ParsedShift, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedShift{}, false
}

func makeShift(ps ParsedShift, id string, start, end time.Time, loc *time.Location) model.Shift {
	return model.Shift{
		ID:          id,
		SourceID:    ps.Source.ID,
		FranchiseID: ps.FranchiseID,
		RiderID:     ps.RiderID,
		RiderName:   ps.RiderName,
		MotoID:      ps.MotoID,
		Type:        ps.Type,
		Status:      ps.Status,
		StartAt:     start.In(loc),
		EndAt:       end.In(loc),
	}
}

// overlaps treats zero-length shifts as points inside [from, to).
func overlaps(start, end, from, to time.Time) bool {
	if !end.After(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && from.Before(end)
}
