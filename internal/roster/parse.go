package roster

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

// Custom VEVENT properties understood on roster feeds. SUMMARY is used
// as rider name and CATEGORIES as shift type.
const (
	propRiderID     = ical.ComponentProperty("X-RIDER-ID")
	propFranchiseID = ical.ComponentProperty("X-FRANCHISE-ID")
	propMotoID      = ical.ComponentProperty("X-MOTO-ID")
	propRecurrence  = ical.ComponentProperty("RECURRENCE-ID")
)

// ParsedShift is a VEVENT of a roster feed before recurrence expansion.
type ParsedShift struct {
	Source Source

	UID string
	Seq int

	RiderID     string
	RiderName   string
	FranchiseID string
	MotoID      string
	Type        model.ShiftType
	Status      model.ShiftStatus

	Start time.Time
	End   time.Time

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID in the shift's own timezone
	IsOverride bool       // true if this VEVENT replaces one recurring instance
}

// ParseICS parses one roster feed. VEVENTs that cannot be read are
// logged and skipped.
func ParseICS(src Source, body []byte) ([]ParsedShift, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyFeed
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("roster ics parse failed", err, "id", src.ID)
		return nil, err
	}

	shifts := make([]ParsedShift, 0)
	for _, comp := range cal.Events() {
		ps, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Error("roster vevent skipped", perr, "id", src.ID)
			continue
		}
		shifts = append(shifts, ps)
	}

	appLog.Debug("roster ics parsed", "id", src.ID, "shift_count", len(shifts))
	return shifts, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedShift, error) {
	out := ParsedShift{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	out.RiderName = propValue(ve, ical.ComponentPropertySummary)
	out.RiderID = propValue(ve, propRiderID)
	if out.RiderID == "" {
		out.RiderID = out.RiderName
	}
	out.FranchiseID = propValue(ve, propFranchiseID)
	if out.FranchiseID == "" {
		out.FranchiseID = src.FranchiseID
	}
	out.MotoID = propValue(ve, propMotoID)
	out.Type = model.ParseShiftType(firstCategory(propValue(ve, ical.ComponentPropertyCategories)))
	out.Status = model.ParseShiftStatus(propValue(ve, ical.ComponentPropertyStatus))

	start, err := ve.GetStartAt()
	if err != nil {
		return out, errors.New("missing or invalid DTSTART")
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, errors.New("missing or invalid DTEND")
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(propRecurrence); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func firstCategory(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		return v[:i]
	}
	return v
}

// parseICSTime parses a DATE or DATE-TIME value. Floating times are read
// in loc, which should be the zone of the owning DTSTART.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
