// Package layout packs the time-ranged events of one calendar day into
// horizontal lanes for rendering.
//
// Events are normalized to minutes since local midnight, split into
// clusters of transitively overlapping events and packed per cluster
// with first-fit interval colouring, so a cluster uses exactly as many
// columns as its peak concurrency. When a column would be narrower than
// the minimum card width the cluster is drawn as a "deck": cards fanned
// with a fixed pixel offset and increasing z-order.
//
// Compute is pure: it never mutates its input, keeps no state between
// calls and is safe for concurrent use.
package layout

import "time"

// DisplayType selects how a cluster is drawn.
type DisplayType string

const (
	DisplayColumns DisplayType = "columns"
	DisplayDeck    DisplayType = "deck"
)

// MidnightPolicy decides how an end time of exactly 00:00 is read.
type MidnightPolicy string

const (
	// MidnightEndOfDay reads every 00:00 end as 24:00.
	MidnightEndOfDay MidnightPolicy = "end_of_day"
	// MidnightByDate reads a 00:00 end as 24:00 only when it falls on a
	// later calendar date than the start; otherwise the event is empty.
	MidnightByDate MidnightPolicy = "by_date"
)

const (
	MinutesPerDay = 24 * 60

	DefaultContainerWidthPx = 200.0
	DefaultMinCardWidthPx   = 30.0
	DefaultDeckOffsetPx     = 12.0
	DefaultMinHeightMinutes = 15

	baseZIndex = 10
)

// Event is a caller-owned time range plus an opaque payload that is
// carried through to the Result untouched.
type Event[T any] struct {
	ID      string    `json:"id"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	Payload T         `json:"payload"`
}

// Result is an input event annotated with its rendering geometry.
type Result[T any] struct {
	Event[T]
	Layout Style `json:"layout"`
}

// Options tunes Compute. Zero values fall back to the package defaults.
type Options struct {
	ContainerWidthPx float64
	MinCardWidthPx   float64
	// DeckOffsetPx is the largest step between fanned deck cards. Large
	// decks use a smaller step, (ContainerWidthPx-MinCardWidthPx)/(n-1),
	// so the top card keeps at least MinCardWidthPx.
	DeckOffsetPx     float64
	MinHeightMinutes int

	Midnight MidnightPolicy

	// Location, when set, converts StartAt/EndAt before reading the
	// time of day. Otherwise each timestamp's own location is used.
	Location *time.Location

	// Expand lets a columns-mode card grow over free columns to its right.
	Expand bool
}

// DefaultOptions returns the options used for a zero Options value.
func DefaultOptions() Options {
	return Options{
		ContainerWidthPx: DefaultContainerWidthPx,
		MinCardWidthPx:   DefaultMinCardWidthPx,
		DeckOffsetPx:     DefaultDeckOffsetPx,
		MinHeightMinutes: DefaultMinHeightMinutes,
		Midnight:         MidnightEndOfDay,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ContainerWidthPx <= 0 {
		o.ContainerWidthPx = d.ContainerWidthPx
	}
	if o.MinCardWidthPx <= 0 {
		o.MinCardWidthPx = d.MinCardWidthPx
	}
	if o.DeckOffsetPx <= 0 {
		o.DeckOffsetPx = d.DeckOffsetPx
	}
	if o.MinHeightMinutes <= 0 {
		o.MinHeightMinutes = d.MinHeightMinutes
	}
	switch o.Midnight {
	case MidnightEndOfDay, MidnightByDate:
	default:
		o.Midnight = d.Midnight
	}
	return o
}

// ComputeLayout lays out events with the given container and minimum
// card widths and default values for everything else.
func ComputeLayout[T any](events []Event[T], containerWidthPx, minCardWidthPx float64) []Result[T] {
	return Compute(events, Options{
		ContainerWidthPx: containerWidthPx,
		MinCardWidthPx:   minCardWidthPx,
	})
}

// Compute returns one Result per event, grouped by cluster and, inside a
// cluster, ordered by start time with longer events first. Events with
// an empty ID receive a deterministic one.
//
// All events are assumed to belong to the same day; mixing days is not
// detected.
func Compute[T any](events []Event[T], opts Options) []Result[T] {
	results := make([]Result[T], 0, len(events))
	if len(events) == 0 {
		return results
	}
	opts = opts.withDefaults()

	items := normalize(events, opts)
	for ci, cluster := range splitClusters(items) {
		numColumns := assignColumns(cluster)
		for _, it := range cluster {
			ev := events[it.index]
			ev.ID = it.id
			st := styleFor(cluster, it, numColumns, opts)
			st.Cluster = ci
			results = append(results, Result[T]{Event: ev, Layout: st})
		}
	}
	return results
}
