package dto

import (
	"time"

	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/formatter"
)

// Requests carried in the dispatch payload. Owner identity comes from the caller's token.

type OptionsRequest struct {
	ConfigKey string `json:"config_key"`
	Timezone  string `json:"timezone"`
}

type SlotRequest struct {
	ConfigKey string `json:"config_key"`
	SlotID    string `json:"slot_id"`
	Timezone  string `json:"timezone"`
}

type ReserveRequest struct {
	ConfigKey string `json:"config_key"`
	SlotID    string `json:"slot_id"`
	Timezone  string `json:"timezone"`
}

type CancelRequest struct {
	ConfigKey string `json:"config_key"`
	SlotID    string `json:"slot_id"`
}

type CancelLinkRequest struct {
	Key   string `json:"key" query:"key" form:"key"`
	Token string `json:"token" form:"token"`
}

type ResetSlotRequest struct {
	ConfigKey     string `json:"config_key"`
	SlotID        string `json:"slot_id"`
	Note          string `json:"note"`
	MarkCancelled bool   `json:"mark_cancelled"`
}

type ResetAppointmentRequest struct {
	ConfigKey string `json:"config_key"`
	RecordID  string `json:"record_id"`
	EventID   int64  `json:"event_id"`
	Instance  int    `json:"instance"`
}

type ResetSlotAndAppointmentRequest struct {
	ConfigKey string `json:"config_key"`
	SlotID    string `json:"slot_id"`
	RecordID  string `json:"record_id"`
	EventID   int64  `json:"event_id"`
	Instance  int    `json:"instance"`
}

type AppointmentVerificationRequest struct {
	ConfigKey string `json:"config_key"`
}

type RepairLogRequest struct {
	ConfigKey string `json:"config_key"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
}

type ExportReportRequest struct {
	ConfigKey string `json:"config_key"`
}

type ConfigsForContextRequest struct {
	Fields  []string `json:"fields"`
	EventID int64    `json:"event_id"`
}

// Responses

type OptionsResponse struct {
	Timezone string             `json:"timezone"`
	Message  string             `json:"message"`
	Options  []formatter.Option `json:"options"`
}

type SlotResponse struct {
	Slot   entity.Slot      `json:"slot"`
	State  entity.SlotState `json:"state"`
	Option formatter.Option `json:"option"`
}

type FieldsResponse struct {
	Fields map[string]string `json:"fields"`
}

type CancelConfirmationResponse struct {
	SlotID      string    `json:"slot_id"`
	Description string    `json:"description"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RepairAction is an operator-triggered dispatch call proposed by the auditor.
type RepairAction struct {
	Label  string         `json:"label"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

type SlotVerification struct {
	ConfigKey string         `json:"config_key"`
	StoreID   int64          `json:"store_id"`
	SlotID    string         `json:"slot_id"`
	Date      string         `json:"date"`
	Time      string         `json:"time"`
	Title     string         `json:"title"`
	Owner     *entity.Owner  `json:"owner,omitempty"`
	Status    string         `json:"status"`
	OK        bool           `json:"ok"`
	Errors    []string       `json:"errors"`
	Notes     []string       `json:"notes,omitempty"`
	Actions   []RepairAction `json:"actions"`
}

type AppointmentVerification struct {
	ConfigKey string         `json:"config_key"`
	Owner     entity.Owner   `json:"owner"`
	SlotID    string         `json:"slot_id"`
	Date      string         `json:"date,omitempty"`
	Time      string         `json:"time,omitempty"`
	OK        bool           `json:"ok"`
	Errors    []string       `json:"errors"`
	Actions   []RepairAction `json:"actions"`
}

// Flag renders the OK/ERROR marker.
func (v SlotVerification) Flag() string {
	return flag(v.OK)
}

func (v AppointmentVerification) Flag() string {
	return flag(v.OK)
}

func flag(ok bool) string {
	if ok {
		return "OK"
	}
	return "ERROR"
}

type VerificationReport struct {
	GeneratedAt  time.Time                 `json:"generated_at"`
	ConfigKey    string                    `json:"config_key,omitempty"`
	Slots        []SlotVerification        `json:"slots"`
	Appointments []AppointmentVerification `json:"appointments"`
}

type ExportReportResponse struct {
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
}
