package repository

import (
	"context"

	"timezone-scheduler/core/database"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/params"
	"timezone-scheduler/modules/repairlog/entity"
)

type RepairRepositoryInterface interface {
	Create(ctx context.Context, entry *entity.RepairEntry) error
	GetByProjectID(ctx context.Context, projectID int64, configKey string, params params.QueryParams) (*entity.PaginatedRepairEntryEntity, error)
}

type RepairRepository struct {
	db database.IDatabase
}

func NewRepairRepository(db database.IDatabase) *RepairRepository {
	return &RepairRepository{db: db}
}

func (r *RepairRepository) Create(ctx context.Context, entry *entity.RepairEntry) error {
	query := `
		INSERT INTO tz_repair_log (id, project_id, action, config_key, slot_id, record_id, event_id, instance, note, actor, data, created_at, updated_at)
		VALUES (:id, :project_id, :action, :config_key, :slot_id, :record_id, :event_id, :instance, :note, :actor, :data, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		logger.Error("RepairRepository:Create:Error:", err)
		return err
	}
	return nil
}

// GetByProjectID pages through a project's repairs, newest first. An empty configKey matches all.
func (r *RepairRepository) GetByProjectID(ctx context.Context, projectID int64, configKey string, params params.QueryParams) (*entity.PaginatedRepairEntryEntity, error) {
	baseQuery := `FROM tz_repair_log WHERE project_id = ?`
	args := []any{projectID}
	if configKey != "" {
		baseQuery += ` AND config_key = ?`
		args = append(args, configKey)
	}

	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		logger.Error("RepairRepository:GetByProjectID:Count:Error:", err)
		return nil, err
	}

	query := `
		SELECT id, project_id, action, config_key, slot_id, record_id, event_id, instance, note, actor, data, created_at, updated_at
		` + baseQuery + `
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`
	entries := []entity.RepairEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, append(args, params.PageSize, params.Offset())...); err != nil {
		logger.Error("RepairRepository:GetByProjectID:Select:Error:", err)
		return nil, err
	}

	return &entity.PaginatedRepairEntryEntity{
		Items:      entries,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}
