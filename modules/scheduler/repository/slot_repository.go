package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"timezone-scheduler/core/database"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/modules/scheduler/entity"
)

var (
	ErrSlotNotFound  = stderrors.New("slot not found")
	ErrSlotNotUnique = stderrors.New("slot id is not unique")
	ErrNoRowsWritten = stderrors.New("store reported no rows written")
)

const slotColumns = `project_id, slot_id, date, time, title, project_filter, slot_filter, reserved_ts,
	source_project_id, source_record_id, source_event_id, source_instance_id,
	source_record_url, source_project_title, participant_timezone, participant_description,
	completed, admin_note`

type SlotRepositoryInterface interface {
	Get(ctx context.Context, configKey, slotID string) (*entity.Slot, error)
	List(ctx context.Context, configKey string, filter ListFilter) ([]entity.Slot, error)
	ListStore(ctx context.Context, storeID int64) ([]entity.Slot, error)
	Save(ctx context.Context, configKey string, slot *entity.Slot) error
}

// ConfigSource resolves a config key to its slot store.
type ConfigSource interface {
	Get(key string) (*entity.SchedulingConfig, error)
}

// ListFilter narrows List. Tenant is the caller's project id as written in project_filter.
type ListFilter struct {
	Tenant          string
	OnlyAvailable   bool
	SlotFilterValue string
}

type SlotRepository struct {
	db      database.IDatabase
	configs ConfigSource
}

func NewSlotRepository(db database.IDatabase, configs ConfigSource) *SlotRepository {
	return &SlotRepository{db: db, configs: configs}
}

func (r *SlotRepository) store(configKey string) (int64, error) {
	cfg, err := r.configs.Get(configKey)
	if err != nil {
		return 0, err
	}
	return cfg.SlotProjectID, nil
}

// Get fails unless exactly one slot in the config's store carries slotID.
func (r *SlotRepository) Get(ctx context.Context, configKey, slotID string) (*entity.Slot, error) {
	storeID, err := r.store(configKey)
	if err != nil {
		return nil, err
	}
	var slots []entity.Slot
	query := `SELECT ` + slotColumns + ` FROM tz_slots WHERE project_id = ? AND slot_id = ?`
	if err := r.db.SelectContext(ctx, &slots, query, storeID, slotID); err != nil {
		logger.Error("SlotRepository:Get:Error:", err)
		return nil, err
	}
	switch len(slots) {
	case 0:
		return nil, fmt.Errorf("%w: %s in store %d", ErrSlotNotFound, slotID, storeID)
	case 1:
		return &slots[0], nil
	default:
		return nil, fmt.Errorf("%w: %s in store %d", ErrSlotNotUnique, slotID, storeID)
	}
}

// List returns the config's slots visible to filter.Tenant in chronological order.
func (r *SlotRepository) List(ctx context.Context, configKey string, filter ListFilter) ([]entity.Slot, error) {
	storeID, err := r.store(configKey)
	if err != nil {
		return nil, err
	}
	slots, err := r.ListStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return FilterSlots(slots, filter), nil
}

// FilterSlots drops slots tagged for another tenant and, with OnlyAvailable,
// slots that are taken or carry a different slot-filter tag.
func FilterSlots(slots []entity.Slot, filter ListFilter) []entity.Slot {
	out := make([]entity.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.ProjectFilter != "" && slot.ProjectFilter != filter.Tenant {
			continue
		}
		if filter.OnlyAvailable {
			if slot.State() != entity.SlotAvailable {
				continue
			}
			if slot.SlotFilter != filter.SlotFilterValue {
				continue
			}
		}
		out = append(out, slot)
	}
	return out
}

// ListStore returns every slot of one store in chronological order.
func (r *SlotRepository) ListStore(ctx context.Context, storeID int64) ([]entity.Slot, error) {
	slots := []entity.Slot{}
	query := `SELECT ` + slotColumns + ` FROM tz_slots WHERE project_id = ? ORDER BY date, time, slot_id`
	if err := r.db.SelectContext(ctx, &slots, query, storeID); err != nil {
		logger.Error("SlotRepository:ListStore:Error:", err)
		return nil, err
	}
	return slots, nil
}

// Save writes every field of slot into the config's store, creating it when missing.
func (r *SlotRepository) Save(ctx context.Context, configKey string, slot *entity.Slot) error {
	storeID, err := r.store(configKey)
	if err != nil {
		return err
	}
	slot.ProjectID = storeID

	query := `
		INSERT INTO tz_slots (` + slotColumns + `)
		VALUES (:project_id, :slot_id, :date, :time, :title, :project_filter, :slot_filter, :reserved_ts,
			:source_project_id, :source_record_id, :source_event_id, :source_instance_id,
			:source_record_url, :source_project_title, :participant_timezone, :participant_description,
			:completed, :admin_note)
		ON CONFLICT (project_id, slot_id) DO UPDATE SET
			date = excluded.date,
			time = excluded.time,
			title = excluded.title,
			project_filter = excluded.project_filter,
			slot_filter = excluded.slot_filter,
			reserved_ts = excluded.reserved_ts,
			source_project_id = excluded.source_project_id,
			source_record_id = excluded.source_record_id,
			source_event_id = excluded.source_event_id,
			source_instance_id = excluded.source_instance_id,
			source_record_url = excluded.source_record_url,
			source_project_title = excluded.source_project_title,
			participant_timezone = excluded.participant_timezone,
			participant_description = excluded.participant_description,
			completed = excluded.completed,
			admin_note = excluded.admin_note
	`
	res, err := r.db.NamedExecContext(ctx, query, slot)
	if err != nil {
		logger.Error("SlotRepository:Save:Error:", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Error("SlotRepository:Save:NoRows", "slot_id", slot.ID, "project_id", slot.ProjectID)
		return ErrNoRowsWritten
	}
	return nil
}
