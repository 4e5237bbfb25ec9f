package entity

import (
	"fmt"
	"strings"
	"time"
)

// SlotState is derived from the reservation stamp and the owner tuple.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotReserved  SlotState = "reserved"
	SlotCancelled SlotState = "cancelled"
	// SlotOwnedUnreserved has an owner but no stamp; only reachable through out-of-band edits.
	SlotOwnedUnreserved SlotState = "owned_unreserved"
)

const (
	SlotDateLayout     = "2006-01-02"
	SlotTimeLayout     = "15:04"
	ServerTimestampFmt = "2006-01-02 15:04"
)

// Slot is one reservable time unit in a slot store.
type Slot struct {
	ProjectID              int64      `db:"project_id" json:"project_id"`
	ID                     string     `db:"slot_id" json:"slot_id"`
	Date                   string     `db:"date" json:"date"`
	Time                   string     `db:"time" json:"time"`
	Title                  string     `db:"title" json:"title"`
	ProjectFilter          string     `db:"project_filter" json:"project_filter"`
	SlotFilter             string     `db:"slot_filter" json:"slot_filter"`
	ReservedAt             *time.Time `db:"reserved_ts" json:"reserved_ts,omitempty"`
	SourceProjectID        *int64     `db:"source_project_id" json:"source_project_id,omitempty"`
	SourceRecordID         *string    `db:"source_record_id" json:"source_record_id,omitempty"`
	SourceEventID          *int64     `db:"source_event_id" json:"source_event_id,omitempty"`
	SourceInstanceID       *int       `db:"source_instance_id" json:"source_instance_id,omitempty"`
	SourceRecordURL        string     `db:"source_record_url" json:"source_record_url"`
	SourceProjectTitle     string     `db:"source_project_title" json:"source_project_title"`
	ParticipantTimezone    string     `db:"participant_timezone" json:"participant_timezone"`
	ParticipantDescription string     `db:"participant_description" json:"participant_description"`
	Completed              bool       `db:"completed" json:"completed"`
	AdminNote              string     `db:"admin_note" json:"admin_note"`
}

// Owner returns the owner tuple, or nil when the slot has none.
func (s *Slot) Owner() *Owner {
	if s.SourceRecordID == nil || strings.TrimSpace(*s.SourceRecordID) == "" {
		return nil
	}
	o := Owner{RecordID: *s.SourceRecordID, Instance: 1}
	if s.SourceProjectID != nil {
		o.ProjectID = *s.SourceProjectID
	}
	if s.SourceEventID != nil {
		o.EventID = *s.SourceEventID
	}
	if s.SourceInstanceID != nil && *s.SourceInstanceID > 0 {
		o.Instance = *s.SourceInstanceID
	}
	return &o
}

func (s *Slot) IsStamped() bool {
	return s.ReservedAt != nil && !s.ReservedAt.IsZero()
}

func (s *Slot) State() SlotState {
	owned := s.Owner() != nil
	switch {
	case s.IsStamped() && owned:
		return SlotReserved
	case s.IsStamped():
		return SlotCancelled
	case owned:
		return SlotOwnedUnreserved
	default:
		return SlotAvailable
	}
}

// Reserve stamps the slot for owner.
func (s *Slot) Reserve(owner Owner, at time.Time) {
	stamp := at.UTC().Truncate(time.Second)
	projectID, eventID, instance, recordID := owner.ProjectID, owner.EventID, owner.Normalized().Instance, owner.RecordID
	s.ReservedAt = &stamp
	s.SourceProjectID = &projectID
	s.SourceRecordID = &recordID
	s.SourceEventID = &eventID
	s.SourceInstanceID = &instance
	s.AdminNote = ""
}

// ClearOwnership removes the owner tuple and every participant attribute, keeping the stamp.
func (s *Slot) ClearOwnership() {
	s.SourceProjectID = nil
	s.SourceRecordID = nil
	s.SourceEventID = nil
	s.SourceInstanceID = nil
	s.SourceRecordURL = ""
	s.SourceProjectTitle = ""
	s.ParticipantTimezone = ""
	s.ParticipantDescription = ""
	s.Completed = false
}

// ClearReservation returns the slot to Available.
func (s *Slot) ClearReservation() {
	s.ClearOwnership()
	s.ReservedAt = nil
	s.AdminNote = ""
}

// MarkCancelled withholds the slot: stamp without owner.
func (s *Slot) MarkCancelled(at time.Time, note string) {
	s.ClearOwnership()
	stamp := at.UTC().Truncate(time.Second)
	s.ReservedAt = &stamp
	s.AdminNote = note
}

// Instant interprets date and time as a wall clock in loc.
func (s *Slot) Instant(loc *time.Location) (time.Time, error) {
	date := strings.TrimSpace(s.Date)
	clock := strings.TrimSpace(s.Time)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("slot %s has no date or time", s.ID)
	}
	for _, layout := range []string{SlotDateLayout + " " + SlotTimeLayout, SlotDateLayout + " 15:04:05"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("slot %s has unparsable date/time %q %q", s.ID, date, clock)
}
