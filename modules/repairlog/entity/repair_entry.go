package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"timezone-scheduler/core/entity"
)

// RepairEntry records one administrative repair applied to a slot or appointment record.
type RepairEntry struct {
	ProjectID int64  `db:"project_id" json:"project_id"`
	Action    string `db:"action" json:"action"`
	ConfigKey string `db:"config_key" json:"config_key"`
	SlotID    string `db:"slot_id" json:"slot_id"`
	RecordID  string `db:"record_id" json:"record_id"`
	EventID   int64  `db:"event_id" json:"event_id"`
	Instance  int    `db:"instance" json:"instance"`
	Note      string `db:"note" json:"note"`
	Actor     string `db:"actor" json:"actor"`
	Data      JSONB  `db:"data" json:"data"`
	entity.BaseEntity
}

type JSONB map[string]interface{}

func (a JSONB) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *JSONB) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, a)
}

type PaginatedRepairEntryEntity = entity.Pagination[RepairEntry]
