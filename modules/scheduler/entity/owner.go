package entity

import "fmt"

// Owner identifies the appointment record holding a slot: store, record, event, repeat instance.
type Owner struct {
	ProjectID int64  `json:"project_id"`
	RecordID  string `json:"record_id"`
	EventID   int64  `json:"event_id"`
	Instance  int    `json:"instance"`
}

// Normalized treats a missing instance as the first one.
func (o Owner) Normalized() Owner {
	if o.Instance < 1 {
		o.Instance = 1
	}
	return o
}

func (o Owner) Equal(other Owner) bool {
	a, b := o.Normalized(), other.Normalized()
	return a.ProjectID == b.ProjectID && a.RecordID == b.RecordID && a.EventID == b.EventID && a.Instance == b.Instance
}

func (o Owner) Valid() bool {
	return o.ProjectID > 0 && o.RecordID != "" && o.EventID > 0
}

func (o Owner) String() string {
	n := o.Normalized()
	return fmt.Sprintf("%d/%s/%d/%d", n.ProjectID, n.RecordID, n.EventID, n.Instance)
}

// FieldValue is one record's value of one field.
type FieldValue struct {
	Owner Owner
	Value string
}
