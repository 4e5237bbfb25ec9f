package entity

import (
	"errors"
	"fmt"
	"strings"

	"timezone-scheduler/core/config"
)

// DatetimeFormat is the native storage format of a mirrored datetime field.
type DatetimeFormat string

const (
	DatetimeYMD        DatetimeFormat = "datetime_ymd"
	DatetimeMDY        DatetimeFormat = "datetime_mdy"
	DatetimeDMY        DatetimeFormat = "datetime_dmy"
	DatetimeSecondsYMD DatetimeFormat = "datetime_seconds_ymd"
	DatetimeSecondsMDY DatetimeFormat = "datetime_seconds_mdy"
	DatetimeSecondsDMY DatetimeFormat = "datetime_seconds_dmy"
	DateYMD            DatetimeFormat = "date_ymd"
	DateMDY            DatetimeFormat = "date_mdy"
	DateDMY            DatetimeFormat = "date_dmy"
)

// Layout returns the Go time layout for f.
func (f DatetimeFormat) Layout() (string, bool) {
	switch f {
	case DatetimeYMD:
		return "2006-01-02 15:04", true
	case DatetimeMDY:
		return "01-02-2006 15:04", true
	case DatetimeDMY:
		return "02-01-2006 15:04", true
	case DatetimeSecondsYMD:
		return "2006-01-02 15:04:05", true
	case DatetimeSecondsMDY:
		return "01-02-2006 15:04:05", true
	case DatetimeSecondsDMY:
		return "02-01-2006 15:04:05", true
	case DateYMD:
		return "2006-01-02", true
	case DateMDY:
		return "01-02-2006", true
	case DateDMY:
		return "02-01-2006", true
	}
	return "", false
}

const (
	DefaultTextDateTemplate    = "{client_date} @ {client_time} {client_tz}"
	DefaultDescriptionTemplate = "{title}\n{server_date} @ {server_time} {server_tz}<== ({client_date} @ {client_time} {client_tz})==>"
	DefaultButtonLabel         = "Select An Appt"
)

var ErrIncompleteConfig = errors.New("incomplete scheduling config")

// SchedulingConfig binds one appointment field on one event to a slot store.
type SchedulingConfig struct {
	Key                 string         `json:"key"`
	SlotProjectID       int64          `json:"slot_project_id"`
	SlotIDField         string         `json:"slot_id_field"`
	EventID             int64          `json:"event_id"`
	SlotFilterField     string         `json:"slot_filter_field,omitempty"`
	SlotFilterValue     string         `json:"slot_filter_value,omitempty"`
	TextDateTemplate    string         `json:"-"`
	DescriptionTemplate string         `json:"-"`
	DatetimeField       string         `json:"datetime_field,omitempty"`
	DatetimeFormat      DatetimeFormat `json:"datetime_format,omitempty"`
	TextDateField       string         `json:"text_date_field,omitempty"`
	DescriptionField    string         `json:"description_field,omitempty"`
	CancelURLField      string         `json:"cancel_url_field,omitempty"`
	SlotURLField        string         `json:"slot_url_field,omitempty"`
	ButtonLabel         string         `json:"button_label"`
	Disabled            bool           `json:"disabled"`
}

// ConfigKey builds the registry key for a field on an event.
func ConfigKey(field string, eventID int64) string {
	return fmt.Sprintf("%s|%d", field, eventID)
}

// NewSchedulingConfig validates a raw entry. Incomplete entries are rejected here
// rather than at first use.
func NewSchedulingConfig(raw config.InstanceConfig) (*SchedulingConfig, error) {
	field := strings.TrimSpace(raw.SlotIDField)
	var missing []string
	if raw.SlotProjectID <= 0 {
		missing = append(missing, "slot-project-id")
	}
	if field == "" {
		missing = append(missing, "slot-id-field")
	}
	if raw.SlotIDFieldEventID <= 0 {
		missing = append(missing, "slot-id-field-event-id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}

	cfg := &SchedulingConfig{
		Key:                 ConfigKey(field, raw.SlotIDFieldEventID),
		SlotProjectID:       raw.SlotProjectID,
		SlotIDField:         field,
		EventID:             raw.SlotIDFieldEventID,
		SlotFilterField:     strings.TrimSpace(raw.SlotFilterField),
		SlotFilterValue:     strings.TrimSpace(raw.SlotFilterValue),
		TextDateTemplate:    raw.ParticipantTextDateFormat,
		DescriptionTemplate: raw.ParticipantDescriptionTmpl,
		DatetimeField:       strings.TrimSpace(raw.ApptDatetimeField),
		DatetimeFormat:      DatetimeFormat(strings.TrimSpace(raw.ApptDatetimeFieldFormat)),
		TextDateField:       strings.TrimSpace(raw.ApptTextDateField),
		DescriptionField:    strings.TrimSpace(raw.ApptDescriptionField),
		CancelURLField:      strings.TrimSpace(raw.ApptCancelURLField),
		SlotURLField:        strings.TrimSpace(raw.ApptSlotURLField),
		ButtonLabel:         raw.ButtonLabel,
		Disabled:            raw.Disabled,
	}
	if cfg.TextDateTemplate == "" {
		cfg.TextDateTemplate = DefaultTextDateTemplate
	}
	if cfg.DescriptionTemplate == "" {
		cfg.DescriptionTemplate = DefaultDescriptionTemplate
	}
	if cfg.ButtonLabel == "" {
		cfg.ButtonLabel = DefaultButtonLabel
	}
	if cfg.DatetimeField != "" {
		if cfg.DatetimeFormat == "" {
			cfg.DatetimeFormat = DatetimeYMD
		}
		if _, ok := cfg.DatetimeFormat.Layout(); !ok {
			return nil, fmt.Errorf("%w: unknown appt-datetime-field-format %q", ErrIncompleteConfig, cfg.DatetimeFormat)
		}
	}
	return cfg, nil
}

// MirroredFields lists the owner record fields this config writes, reference field first.
func (c *SchedulingConfig) MirroredFields() []string {
	fields := []string{c.SlotIDField}
	for _, f := range []string{c.DatetimeField, c.TextDateField, c.DescriptionField, c.CancelURLField, c.SlotURLField} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
