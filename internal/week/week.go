package week

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"shiftcal/internal/layout"
	"shiftcal/internal/model"
)

// DateLayout is the key format for day columns.
const DateLayout = "2006-01-02"

// View selects which part of the day a week grid shows.
type View string

const (
	ViewFull  View = "full"
	ViewPrime View = "prime"
)

// ParseView maps a query/config value onto a View, defaulting to full.
func ParseView(s string) View {
	if strings.EqualFold(strings.TrimSpace(s), string(ViewPrime)) {
		return ViewPrime
	}
	return ViewFull
}

// Segment is the part of a shift that falls on a single day column.
type Segment struct {
	Shift        model.Shift `json:"shift"`
	Date         string      `json:"date"`
	Continuation bool        `json:"continuation"`
}

// Day is one laid-out column of the week grid.
type Day struct {
	Date    string                   `json:"date"`
	Weekday string                   `json:"weekday"`
	Events  []layout.Result[Segment] `json:"events"`
}

// Week is the laid-out week grid.
type Week struct {
	Start    string `json:"start"`
	Timezone string `json:"timezone"`
	View     View   `json:"view"`
	Height   int    `json:"height"`
	Days     []Day  `json:"days"`
}

// StartOfWeek returns local midnight of the first day of the week that
// contains t. weekStart is "monday" (default) or "sunday".
func StartOfWeek(t time.Time, weekStart string) time.Time {
	first := time.Monday
	if strings.EqualFold(weekStart, "sunday") {
		first = time.Sunday
	}
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// SplitByDay cuts every shift at local midnight in loc and groups the
// pieces by date. The first piece keeps the shift ID; later pieces are
// marked as continuations and get a "-c<n>" suffix.
func SplitByDay(shifts []model.Shift, loc *time.Location) map[string][]layout.Event[Segment] {
	if loc == nil {
		loc = time.Local
	}
	out := make(map[string][]layout.Event[Segment])

	push := func(sh model.Shift, n int, start, end time.Time) {
		date := start.Format(DateLayout)
		id := sh.ID
		if n > 0 && id != "" {
			id = fmt.Sprintf("%s-c%d", id, n)
		}
		out[date] = append(out[date], layout.Event[Segment]{
			ID:      id,
			StartAt: start,
			EndAt:   end,
			Payload: Segment{Shift: sh, Date: date, Continuation: n > 0},
		})
	}

	for _, sh := range shifts {
		start := sh.StartAt.In(loc)
		end := sh.EndAt.In(loc)
		if !end.After(start) {
			push(sh, 0, start, end)
			continue
		}

		n := 0
		for cur := start; cur.Before(end); n++ {
			y, m, d := cur.Date()
			next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
			segEnd := end
			if next.Before(end) {
				segEnd = next
			}
			push(sh, n, cur, segEnd)
			cur = next
		}
	}
	return out
}

// Build lays out days consecutive day columns starting at start's date.
// Times are read in start's location.
func Build(shifts []model.Shift, start time.Time, days int, view View, opts layout.Options) Week {
	if days <= 0 {
		days = 7
	}
	loc := start.Location()
	opts.Location = loc
	segments := SplitByDay(shifts, loc)

	w := Week{
		Start:    start.Format(DateLayout),
		Timezone: loc.String(),
		View:     view,
		Height:   layout.MinutesPerDay,
		Days:     make([]Day, 0, days),
	}
	if view == ViewPrime {
		w.Height = PrimeHeight
	}

	y, m, d := start.Date()
	for i := 0; i < days; i++ {
		date := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		key := date.Format(DateLayout)
		results := layout.Compute(segments[key], opts)
		if view == ViewPrime {
			results = primeOnly(results)
		}
		w.Days = append(w.Days, Day{
			Date:    key,
			Weekday: date.Weekday().String(),
			Events:  results,
		})
	}
	return w
}

// Riders returns the distinct rider IDs appearing in the week, sorted.
func (w Week) Riders() []string {
	set := map[string]struct{}{}
	for _, d := range w.Days {
		for _, r := range d.Events {
			if id := r.Payload.Shift.RiderID; id != "" {
				set[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
