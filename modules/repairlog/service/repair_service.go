package service

import (
	"context"
	"time"

	coreEntity "timezone-scheduler/core/entity"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/params"
	"timezone-scheduler/modules/repairlog/dto"
	"timezone-scheduler/modules/repairlog/entity"
	"timezone-scheduler/modules/repairlog/repository"

	"github.com/google/uuid"
)

type RepairService struct {
	repo repository.RepairRepositoryInterface
	now  func() time.Time
}

func NewRepairService(repo repository.RepairRepositoryInterface) *RepairService {
	return &RepairService{repo: repo, now: time.Now}
}

func (s *RepairService) Record(ctx context.Context, req *dto.RecordRepairRequest) error {
	now := s.now().UTC()
	entry := &entity.RepairEntry{
		ProjectID: req.ProjectID,
		Action:    req.Action,
		ConfigKey: req.ConfigKey,
		SlotID:    req.SlotID,
		RecordID:  req.RecordID,
		EventID:   req.EventID,
		Instance:  req.Instance,
		Note:      req.Note,
		Actor:     req.Actor,
		Data:      entity.JSONB(req.Data),
		BaseEntity: coreEntity.BaseEntity{
			ID:        uuid.NewString(),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return s.repo.Create(ctx, entry)
}

func (s *RepairService) List(ctx context.Context, projectID int64, configKey string, queryParams params.QueryParams) (*dto.PaginatedRepairResponse, *errors.AppError) {
	page, err := s.repo.GetByProjectID(ctx, projectID, configKey, queryParams)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to get repair log", err)
	}

	items := make([]dto.RepairEntryResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, dto.RepairEntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			ConfigKey: e.ConfigKey,
			SlotID:    e.SlotID,
			RecordID:  e.RecordID,
			EventID:   e.EventID,
			Instance:  e.Instance,
			Note:      e.Note,
			Actor:     e.Actor,
			Data:      e.Data,
			CreatedAt: e.CreatedAt,
		})
	}
	return &dto.PaginatedRepairResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}
