package service

import (
	"testing"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/utils"
	"timezone-scheduler/modules/scheduler/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveWithLink(t *testing.T, f *fixture) string {
	t.Helper()
	fields, appErr := f.engine.Reserve(f.ctx, testKey, "7", "America/Los_Angeles", ownerA)
	require.Nil(t, appErr)
	return cancelKey(t, fields["appt_cancel"])
}

func TestCancelLink_PrepareThenCancel(t *testing.T) {
	f := newFixture(t)
	key := reserveWithLink(t, f)

	confirm, appErr := f.links.Prepare(f.ctx, key)
	require.Nil(t, appErr)
	assert.Equal(t, "7", confirm.SlotID)
	assert.Contains(t, confirm.Description, "Intake")
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), confirm.ExpiresAt)

	cleared, appErr := f.links.Cancel(f.ctx, key, confirm.Token)
	require.Nil(t, appErr)
	assert.Equal(t, "", cleared["appt_slot"])
	assert.Equal(t, entity.SlotAvailable, f.slot(t, "7").State())

	// The reservation the key named is gone.
	_, appErr = f.links.Prepare(f.ctx, key)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidCancelLink, appErr.Code)
}

func TestCancelLink_TokenExpires(t *testing.T) {
	f := newFixture(t)
	key := reserveWithLink(t, f)

	confirm, appErr := f.links.Prepare(f.ctx, key)
	require.Nil(t, appErr)

	f.clock.Set(f.clock.Now().Add(11 * time.Minute))
	_, appErr = f.links.Cancel(f.ctx, key, confirm.Token)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrTokenExpired, appErr.Code)
	assert.Equal(t, entity.SlotReserved, f.slot(t, "7").State())
}

func TestCancelLink_RejectsMismatchedConfigKey(t *testing.T) {
	f := newFixture(t)
	key := reserveWithLink(t, f)

	token, err := utils.GenerateConfirmToken(testSecret, "other_field|88", constants.ScopeTokenCancelConfirm, f.clock.Now(), 10*time.Minute)
	require.NoError(t, err)

	_, appErr := f.links.Cancel(f.ctx, key, token)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidCancelLink, appErr.Code)
	assert.Equal(t, entity.SlotReserved, f.slot(t, "7").State())
}

func TestCancelLink_RejectsStaleAndTamperedKeys(t *testing.T) {
	f := newFixture(t)
	key := reserveWithLink(t, f)

	_, appErr := f.links.Prepare(f.ctx, key+"x")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidCancelLink, appErr.Code)

	// Same slot, new reservation: the old link must not cancel it.
	_, appErr = f.engine.Cancel(f.ctx, testKey, "7", ownerA, false)
	require.Nil(t, appErr)
	_, appErr = f.engine.Reserve(f.ctx, testKey, "7", "", ownerB)
	require.Nil(t, appErr)

	_, appErr = f.links.Prepare(f.ctx, key)
	require.NotNil(t, appErr)
	assert.Equal(t, "This appointment slot has changed and this cancel link is no longer valid.", appErr.Message)
}
