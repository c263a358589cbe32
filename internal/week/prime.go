package week

import "shiftcal/internal/layout"

// Prime view: the lunch (12:00-16:00) and dinner (19:00-24:00) peaks
// stacked back to back, one pixel per minute.
const (
	lunchStartHour  = 12
	lunchEndHour    = 16
	dinnerStartHour = 19
	dinnerEndHour   = 24

	PrimeHeight = ((lunchEndHour - lunchStartHour) + (dinnerEndHour - dinnerStartHour)) * 60
)

// PrimeTop maps a minute of the day onto the prime grid. ok is false
// for minutes outside both peaks.
func PrimeTop(minute int) (top int, ok bool) {
	h, m := minute/60, minute%60
	switch {
	case h >= lunchStartHour && h < lunchEndHour:
		return (h-lunchStartHour)*60 + m, true
	case h >= dinnerStartHour && h < dinnerEndHour:
		return ((h-dinnerStartHour)+(lunchEndHour-lunchStartHour))*60 + m, true
	default:
		return 0, false
	}
}

// primeOnly drops cards that start outside the peaks and moves the rest
// onto the prime grid, clipping heights at the grid bottom.
func primeOnly(results []layout.Result[Segment]) []layout.Result[Segment] {
	out := make([]layout.Result[Segment], 0, len(results))
	for _, r := range results {
		top, ok := PrimeTop(r.Layout.Top)
		if !ok {
			continue
		}
		r.Layout.Top = top
		r.Layout.Height = min(r.Layout.Height, PrimeHeight-top)
		out = append(out, r)
	}
	return out
}
