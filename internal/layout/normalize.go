package layout

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// idNamespace scopes the UUIDs derived for events that arrive without an ID.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shiftcal:layout:event"))

// item is the engine's private view of one event for the duration of a call.
type item struct {
	index  int // position in the caller's slice
	id     string
	start  int
	end    int
	column int
}

func (it item) duration() int { return it.end - it.start }

func (it item) overlaps(other item) bool {
	return it.start < other.end && other.start < it.end
}

// normalize converts events to minute ranges and sorts them by start,
// longest first on equal starts. Remaining ties keep input order.
func normalize[T any](events []Event[T], opts Options) []item {
	items := make([]item, len(events))
	for i, ev := range events {
		start, end := minuteRange(ev.StartAt, ev.EndAt, opts)
		items[i] = item{
			index: i,
			id:    eventID(i, ev.ID, ev.StartAt, ev.EndAt),
			start: start,
			end:   end,
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].start != items[b].start {
			return items[a].start < items[b].start
		}
		return items[a].duration() > items[b].duration()
	})
	return items
}

// minuteRange returns [start, end] in minutes since local midnight.
// An end before the start runs to the end of the day.
func minuteRange(startAt, endAt time.Time, opts Options) (int, int) {
	if opts.Location != nil {
		startAt = startAt.In(opts.Location)
		endAt = endAt.In(opts.Location)
	}
	start := minuteOfDay(startAt)
	end := minuteOfDay(endAt)

	if end < start {
		end = MinutesPerDay
	}
	if end == 0 {
		switch opts.Midnight {
		case MidnightByDate:
			if laterDate(startAt, endAt) {
				end = MinutesPerDay
			}
		default:
			end = MinutesPerDay
		}
	}
	return start, end
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// laterDate reports whether b falls on a later calendar date than a,
// each read in its own location.
func laterDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).After(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC))
}

func eventID(index int, id string, startAt, endAt time.Time) string {
	if id != "" {
		return id
	}
	name := strconv.Itoa(index) + "|" + startAt.Format(time.RFC3339Nano) + "|" + endAt.Format(time.RFC3339Nano)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
