package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"timezone-scheduler/core/errors"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/formatter"
	"timezone-scheduler/modules/scheduler/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve_MirrorsIntoOwnerRecord(t *testing.T) {
	f := newFixture(t)

	fields, appErr := f.engine.Reserve(f.ctx, testKey, "7", "America/Los_Angeles", ownerA)
	require.Nil(t, appErr)
	assert.Equal(t, "7", fields["appt_slot"])
	assert.Equal(t, "2025-11-01 09:00", fields["appt_dt"])
	assert.Equal(t, "Sat, Nov 1st 2025 @ 6:00am PDT", fields["appt_text"])
	assert.Equal(t, "Intake\nSat, Nov 1st 2025 @ 9:00am EDT (Sat, Nov 1st 2025 @ 6:00am PDT)", fields["appt_desc"])
	assert.Equal(t, testBase+"/slots/5/7", fields["appt_slot_url"])
	cancelKey(t, fields["appt_cancel"])

	slot := f.slot(t, "7")
	assert.Equal(t, entity.SlotReserved, slot.State())
	assert.Equal(t, ownerA, *slot.Owner())
	assert.Equal(t, "America/Los_Angeles", slot.ParticipantTimezone)
	assert.Equal(t, "Study", slot.SourceProjectTitle)
	assert.Equal(t, fields["appt_desc"], slot.ParticipantDescription)
	assert.Contains(t, slot.SourceRecordURL, "/records/12/3")

	assert.Equal(t, fields, f.record(t, ownerA))
}

func TestReserve_SecondReserveFails(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)

	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "", ownerB)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrSlotUnavailable, appErr.Code)
	assert.Equal(t, errors.KindContention, appErr.Kind())
	assert.False(t, appErr.Retryable())

	assert.Equal(t, ownerA, *f.slot(t, "7").Owner())
	assert.Empty(t, f.record(t, ownerB))
}

func TestCancel_RestoresAvailableAndAllowsOtherOwner(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)

	_, appErr = f.engine.Cancel(f.ctx, testKey, "7", ownerB, false)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotReserved, appErr.Code)

	cleared, appErr := f.engine.Cancel(f.ctx, testKey, "7", ownerA, false)
	require.Nil(t, appErr)
	assert.Equal(t, "", cleared["appt_slot"])
	assert.Contains(t, cleared, "appt_desc")

	slot := f.slot(t, "7")
	assert.Equal(t, entity.SlotAvailable, slot.State())
	assert.Nil(t, slot.ReservedAt)
	assert.Empty(t, slot.ParticipantDescription)
	assert.Empty(t, slot.SourceRecordURL)
	assert.Empty(t, f.record(t, ownerA))

	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "", ownerB)
	require.Nil(t, appErr)
	assert.Equal(t, ownerB, *f.slot(t, "7").Owner())
}

func TestCancel_PastNeedsPrivilege(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)

	f.clock.Set(time.Date(2025, 11, 1, 9, 30, 0, 0, f.server))

	_, appErr = f.engine.Cancel(f.ctx, testKey, "7", ownerA, false)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrPastAppointment, appErr.Code)
	assert.Equal(t, entity.SlotReserved, f.slot(t, "7").State())

	_, appErr = f.engine.Cancel(f.ctx, testKey, "7", ownerA, true)
	require.Nil(t, appErr)
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "7").State())
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "8", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrSlotUnavailable, appErr.Code, "past slot")

	_, appErr = f.engine.Reserve(f.ctx, testKey, "missing", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrSlotNotFound, appErr.Code)

	_, appErr = f.engine.Reserve(f.ctx, "nope|1", "7", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrConfigNotFound, appErr.Code)

	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "Mars/Olympus", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)

	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)
	_, appErr = f.engine.Reserve(f.ctx, testKey, "9", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrAlreadyHasAppointment, appErr.Code)
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "9").State())
}

func TestReserve_LockContentionIsRetryable(t *testing.T) {
	f := newFixture(t)

	held, err := f.locker.Acquire(f.ctx, LockKey(5, "7"), 0, time.Second)
	require.NoError(t, err)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrLockNotAcquired, appErr.Code)
	assert.True(t, appErr.Retryable())
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "7").State())

	// Other slots are not serialized behind it.
	_, appErr = f.engine.Reserve(f.ctx, testKey, "9", "", ownerA)
	require.Nil(t, appErr)

	require.NoError(t, held.Release(f.ctx))
}

type failingRecords struct {
	repository.RecordRepositoryInterface
}

func (failingRecords) SaveRecord(context.Context, entity.Owner, map[string]string) error {
	return stderrors.New("record store unavailable")
}

func TestReserve_ReleasesLockWhenRecordWriteFails(t *testing.T) {
	f := newFixture(t)
	engine := NewReservationService(f.configs, f.slots, failingRecords{f.records}, f.locker,
		formatter.New(f.server, f.clock.Now), f.signer, nil, f.settings)

	_, appErr := engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrStoreWrite, appErr.Code)
	assert.Equal(t, errors.KindStoreWrite, appErr.Kind())

	// The slot write committed; the divergence is left for the auditor.
	assert.Equal(t, entity.SlotReserved, f.slot(t, "7").State())

	lock, err := f.locker.Acquire(f.ctx, LockKey(5, "7"), 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release(f.ctx))
}

func TestResetSlot(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)

	ctx := WithActor(f.ctx, "admin")
	require.Nil(t, f.engine.ResetSlot(ctx, testKey, "7", "room closed", true))

	slot := f.slot(t, "7")
	assert.Equal(t, entity.SlotCancelled, slot.State())
	assert.Equal(t, "room closed", slot.AdminNote)
	// The owner record is untouched.
	assert.Equal(t, "7", f.record(t, ownerA)["appt_slot"])

	require.Nil(t, f.engine.ResetSlot(ctx, testKey, "7", "", false))
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "7").State())

	require.Len(t, f.repairs.entries, 2)
	assert.Equal(t, "resetSlot", f.repairs.entries[0].Action)
	assert.Equal(t, "admin", f.repairs.entries[0].Actor)
	assert.Equal(t, int64(12), f.repairs.entries[0].ProjectID)
	assert.Equal(t, ownerA.String(), f.repairs.entries[0].Data["previous_owner"])
}

func TestResetAppointmentAndBoth(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.engine.Reserve(f.ctx, testKey, "7", "", ownerA)
	require.Nil(t, appErr)

	fields, appErr := f.engine.ResetAppointment(f.ctx, testKey, ownerA)
	require.Nil(t, appErr)
	assert.Equal(t, "", fields["appt_slot"])
	assert.Empty(t, f.record(t, ownerA))
	assert.Equal(t, entity.SlotReserved, f.slot(t, "7").State())

	require.NoError(t, f.records.SaveRecord(f.ctx, ownerA, map[string]string{"appt_slot": "7"}))
	_, appErr = f.engine.ResetSlotAndAppointment(f.ctx, testKey, "7", entity.Owner{})
	require.Nil(t, appErr)
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "7").State())
	assert.Empty(t, f.record(t, ownerA))

	require.Len(t, f.repairs.entries, 2)
	assert.Equal(t, "resetSlotAndAppointment", f.repairs.entries[1].Action)
	assert.Equal(t, "3", f.repairs.entries[1].RecordID)
}

func TestScenario_ReservedSlotAcrossTimezones(t *testing.T) {
	f := newFixture(t)

	opts, appErr := f.engine.GetAppointmentOptions(f.ctx, testKey, "America/Los_Angeles", ownerA)
	require.Nil(t, appErr)
	assert.Equal(t, "2 appointments available", opts.Message)
	require.Len(t, opts.Options, 3)
	assert.Equal(t, "Select an appointment...", opts.Options[0].Text)
	assert.Equal(t, []string{"", "7", "9"}, []string{opts.Options[0].ID, opts.Options[1].ID, opts.Options[2].ID})

	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "America/Los_Angeles", ownerA)
	require.Nil(t, appErr)

	got, appErr := f.engine.GetSlot(f.ctx, testKey, "7", "")
	require.Nil(t, appErr)
	assert.Contains(t, got.Option.Description, "9:00am EDT")
	assert.Contains(t, got.Option.Description, "(Sat, Nov 1st 2025 @ 6:00am PDT)")

	f.clock.Set(time.Date(2025, 11, 1, 9, 0, 1, 0, f.server))
	opts, appErr = f.engine.GetAppointmentOptions(f.ctx, testKey, "America/Los_Angeles", ownerB)
	require.Nil(t, appErr)
	require.Len(t, opts.Options, 2)
	assert.Equal(t, "9", opts.Options[1].ID)

	got, appErr = f.engine.GetSlot(f.ctx, testKey, "7", "America/Los_Angeles")
	require.Nil(t, appErr)
	assert.Equal(t, entity.SlotReserved, got.State)
	assert.Equal(t, "7", got.Slot.ID)
}

func TestGetAppointmentOptions_Empty(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, f.server))

	opts, appErr := f.engine.GetAppointmentOptions(f.ctx, testKey, "", ownerA)
	require.Nil(t, appErr)
	assert.Equal(t, "0 appointments available", opts.Message)
	assert.Empty(t, opts.Options)
	assert.Equal(t, "America/New_York", opts.Timezone)
}

func TestReserve_ConcurrentCallersOneWinner(t *testing.T) {
	f := newFixture(t)
	settings := f.settings
	settings.LockWait = 5 * time.Second
	engine := NewReservationService(f.configs, f.slots, f.records, f.locker, formatter.New(f.server, f.clock.Now), f.signer, f.repairs, settings)

	owners := make([]entity.Owner, 4)
	for i := range owners {
		owners[i] = entity.Owner{ProjectID: 12, RecordID: fmt.Sprintf("%d", 20+i), EventID: 88, Instance: 1}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[string]int{}
		winner   entity.Owner
	)
	start := make(chan struct{})
	for _, owner := range owners {
		wg.Add(1)
		go func(owner entity.Owner) {
			defer wg.Done()
			<-start
			_, appErr := engine.Reserve(f.ctx, testKey, "7", "", owner)
			mu.Lock()
			defer mu.Unlock()
			if appErr != nil {
				outcomes[string(appErr.Code)]++
				return
			}
			outcomes["ok"]++
			winner = owner
		}(owner)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, map[string]int{"ok": 1, string(errors.ErrSlotUnavailable): 3}, outcomes)
	assert.Equal(t, winner, *f.slot(t, "7").Owner())
	for _, owner := range owners {
		if owner.Equal(winner) {
			assert.Equal(t, "7", f.record(t, owner)["appt_slot"])
			continue
		}
		assert.Empty(t, f.record(t, owner)["appt_slot"])
	}
}
