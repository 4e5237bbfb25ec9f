package entity

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"timezone-scheduler/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulingConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     config.InstanceConfig
		wantErr string
	}{
		{name: "missing everything", raw: config.InstanceConfig{}, wantErr: "slot-project-id, slot-id-field, slot-id-field-event-id"},
		{name: "missing event", raw: config.InstanceConfig{SlotProjectID: 5, SlotIDField: "appt"}, wantErr: "slot-id-field-event-id"},
		{
			name:    "unknown datetime format",
			raw:     config.InstanceConfig{SlotProjectID: 5, SlotIDField: "appt", SlotIDFieldEventID: 1, ApptDatetimeField: "dt", ApptDatetimeFieldFormat: "iso"},
			wantErr: `unknown appt-datetime-field-format "iso"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchedulingConfig(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncompleteConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewSchedulingConfig_Defaults(t *testing.T) {
	cfg, err := NewSchedulingConfig(config.InstanceConfig{
		SlotProjectID:      5,
		SlotIDField:        " appt_slot ",
		SlotIDFieldEventID: 88,
		ApptDatetimeField:  "appt_dt",
		ApptSlotURLField:   "appt_url",
	})
	require.NoError(t, err)

	assert.Equal(t, "appt_slot|88", cfg.Key)
	assert.Equal(t, DefaultTextDateTemplate, cfg.TextDateTemplate)
	assert.Equal(t, DefaultDescriptionTemplate, cfg.DescriptionTemplate)
	assert.Equal(t, DefaultButtonLabel, cfg.ButtonLabel)
	assert.Equal(t, DatetimeYMD, cfg.DatetimeFormat)
	assert.Equal(t, []string{"appt_slot", "appt_dt", "appt_url"}, cfg.MirroredFields())
}

func TestSlotLifecycle(t *testing.T) {
	at := time.Date(2025, 10, 29, 16, 0, 0, 500, time.UTC)
	owner := Owner{ProjectID: 12, RecordID: "3", EventID: 88}
	slot := &Slot{ID: "7", Date: "2025-11-01", Time: "09:00", AdminNote: "old"}

	assert.Equal(t, SlotAvailable, slot.State())
	assert.Nil(t, slot.Owner())

	slot.Reserve(owner, at)
	assert.Equal(t, SlotReserved, slot.State())
	require.NotNil(t, slot.Owner())
	assert.True(t, slot.Owner().Equal(Owner{ProjectID: 12, RecordID: "3", EventID: 88, Instance: 1}))
	assert.Equal(t, at.Truncate(time.Second), *slot.ReservedAt)
	assert.Empty(t, slot.AdminNote)

	slot.ParticipantTimezone = "Europe/Paris"
	slot.ClearOwnership()
	assert.Equal(t, SlotCancelled, slot.State())
	assert.Empty(t, slot.ParticipantTimezone)

	slot.ClearReservation()
	assert.Equal(t, SlotAvailable, slot.State())

	slot.MarkCancelled(at, "room closed")
	assert.Equal(t, SlotCancelled, slot.State())
	assert.Equal(t, "room closed", slot.AdminNote)

	rid := "4"
	orphan := &Slot{SourceRecordID: &rid}
	assert.Equal(t, SlotOwnedUnreserved, orphan.State())
}

func TestSlotInstant(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := (&Slot{ID: "1", Date: "2025-11-02", Time: "01:30"}).Instant(ny)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02 01:30", got.Format("2006-01-02 15:04"))

	got, err = (&Slot{ID: "2", Date: "2025-11-01", Time: "09:00:15"}).Instant(ny)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Second())

	_, err = (&Slot{ID: "3", Date: "2025-11-01"}).Instant(ny)
	assert.Error(t, err)
	_, err = (&Slot{ID: "4", Date: "11/01/2025", Time: "9am"}).Instant(ny)
	assert.Error(t, err)
}

func TestOwnerNormalization(t *testing.T) {
	a := Owner{ProjectID: 12, RecordID: "3", EventID: 88}
	b := Owner{ProjectID: 12, RecordID: "3", EventID: 88, Instance: 1}
	assert.True(t, a.Equal(b))
	assert.Equal(t, "12/3/88/1", a.String())
	assert.False(t, Owner{RecordID: "3"}.Valid())
}
