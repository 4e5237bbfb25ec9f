package dto

import "time"

// RecordRepairRequest describes a repair just applied by the reservation engine.
type RecordRepairRequest struct {
	ProjectID int64
	Action    string
	ConfigKey string
	SlotID    string
	RecordID  string
	EventID   int64
	Instance  int
	Note      string
	Actor     string
	Data      map[string]interface{}
}

type RepairEntryResponse struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	ConfigKey string                 `json:"config_key"`
	SlotID    string                 `json:"slot_id,omitempty"`
	RecordID  string                 `json:"record_id,omitempty"`
	EventID   int64                  `json:"event_id,omitempty"`
	Instance  int                    `json:"instance,omitempty"`
	Note      string                 `json:"note,omitempty"`
	Actor     string                 `json:"actor,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type PaginatedRepairResponse struct {
	Items      []RepairEntryResponse `json:"items"`
	TotalItems int                   `json:"total_items"`
	PageNumber int                   `json:"page_number"`
	PageSize   int                   `json:"page_size"`
}
