package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	repairDto "timezone-scheduler/modules/repairlog/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/registry"
	"timezone-scheduler/modules/scheduler/repository"
)

// Configs is the registry view the services need.
type Configs interface {
	Get(key string) (*entity.SchedulingConfig, error)
	All() []*entity.SchedulingConfig
}

// RepairRecorder appends administrative repairs to the repair log.
type RepairRecorder interface {
	Record(ctx context.Context, req *repairDto.RecordRepairRequest) error
}

// Settings are the process-wide values the scheduler services share.
type Settings struct {
	ProjectID    int64
	ProjectTitle string
	BaseURL      string
	LockWait     time.Duration
	LockTTL      time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.LockWait <= 0 {
		s.LockWait = constants.DefaultLockWait
	}
	if s.LockTTL <= 0 {
		s.LockTTL = constants.DefaultLockTTL
	}
	return s
}

// RecordURL locates an appointment record.
func (s Settings) RecordURL(owner entity.Owner) string {
	o := owner.Normalized()
	return fmt.Sprintf("%s/records/%d/%s?event_id=%d&instance=%d", s.BaseURL, o.ProjectID, url.PathEscape(o.RecordID), o.EventID, o.Instance)
}

// SlotURL locates a slot in its store.
func (s Settings) SlotURL(storeID int64, slotID string) string {
	return fmt.Sprintf("%s/slots/%d/%s", s.BaseURL, storeID, url.PathEscape(slotID))
}

type actorKey struct{}

// WithActor tags ctx with the identity performing administrative calls.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// LockKey names the mutex guarding one slot of one store.
func LockKey(storeID int64, slotID string) string {
	return constants.RedisKeySlotLock + strconv.FormatInt(storeID, 10) + ":" + slotID
}

func configError(key string, err error) *errors.AppError {
	if stderrors.Is(err, registry.ErrConfigNotFound) {
		return errors.NewAppError(errors.ErrConfigNotFound, fmt.Sprintf("No scheduling configuration for %q", key), err)
	}
	return errors.NewAppError(errors.ErrInvalidConfig, "Invalid scheduling configuration", err)
}

func slotError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, repository.ErrSlotNotFound):
		return errors.NewAppError(errors.ErrSlotNotFound, "Appointment slot not found", err)
	case stderrors.Is(err, repository.ErrSlotNotUnique):
		return errors.NewAppError(errors.ErrSlotIntegrity, "Appointment slot id is not unique in the slot store", err)
	case stderrors.Is(err, registry.ErrConfigNotFound):
		return errors.NewAppError(errors.ErrConfigNotFound, "No scheduling configuration found", err)
	default:
		return errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment slot", err)
	}
}

// withSlotLock runs fn holding the slot's lock. A busy lock is a retryable error.
func withSlotLock(ctx context.Context, locker cache.Locker, settings Settings, storeID int64, slotID string, fn func() *errors.AppError) *errors.AppError {
	var inner *errors.AppError
	ran := false
	err := cache.WithLock(ctx, locker, LockKey(storeID, slotID), settings.LockWait, settings.LockTTL, func() error {
		ran = true
		inner = fn()
		return nil
	})
	if inner != nil {
		return inner
	}
	if err != nil {
		if stderrors.Is(err, cache.ErrLockNotAcquired) {
			return errors.NewAppError(errors.ErrLockNotAcquired, "This appointment slot is busy, please try again", err)
		}
		if ran {
			// fn already committed; the TTL frees the key.
			logger.Warn("Scheduler:withSlotLock:ReleaseFailed", "store_id", storeID, "slot_id", slotID, "error", err)
			return nil
		}
		return errors.NewAppError(errors.ErrInternalServer, "Failed to lock appointment slot", err)
	}
	return nil
}
