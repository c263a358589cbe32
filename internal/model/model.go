package model

import (
	"strings"
	"time"
)

// ShiftType is the roster category of a shift.
type ShiftType string

const (
	ShiftMorning   ShiftType = "morning"
	ShiftAfternoon ShiftType = "afternoon"
	ShiftNight     ShiftType = "night"
	ShiftCustom    ShiftType = "custom"
)

// ShiftStatus tracks the lifecycle of a single shift.
type ShiftStatus string

const (
	StatusScheduled ShiftStatus = "scheduled"
	StatusCompleted ShiftStatus = "completed"
	StatusCancelled ShiftStatus = "cancelled"
)

// Shift is one concrete rider shift after recurrence expansion, with
// Start/End in the configured display timezone.
type Shift struct {
	ID          string `json:"id" yaml:"id"`
	SourceID    string `json:"sourceId,omitempty" yaml:"source_id,omitempty"`
	FranchiseID string `json:"franchiseId,omitempty" yaml:"franchise_id,omitempty"`
	RiderID     string `json:"riderId" yaml:"rider_id"`
	RiderName   string `json:"riderName,omitempty" yaml:"rider_name,omitempty"`
	MotoID      string `json:"motoId,omitempty" yaml:"moto_id,omitempty"`

	Type   ShiftType   `json:"type,omitempty" yaml:"type,omitempty"`
	Status ShiftStatus `json:"status,omitempty" yaml:"status,omitempty"`

	StartAt time.Time `json:"startAt" yaml:"start_at"`
	EndAt   time.Time `json:"endAt" yaml:"end_at"`
}

// ParseShiftType maps free-form roster text onto a ShiftType.
func ParseShiftType(s string) ShiftType {
	switch ShiftType(strings.ToLower(strings.TrimSpace(s))) {
	case ShiftMorning:
		return ShiftMorning
	case ShiftAfternoon:
		return ShiftAfternoon
	case ShiftNight:
		return ShiftNight
	default:
		return ShiftCustom
	}
}

// ParseShiftStatus maps roster text (including iCalendar STATUS values)
// onto a ShiftStatus. Unknown values are treated as scheduled.
func ParseShiftStatus(s string) ShiftStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StatusCompleted
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusScheduled
	}
}

// Overlaps reports whether the shift intersects [from, to).
func (s Shift) Overlaps(from, to time.Time) bool {
	return s.StartAt.Before(to) && from.Before(s.EndAt)
}
