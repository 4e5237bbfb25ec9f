package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/modules/scheduler/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/formatter"
	"timezone-scheduler/modules/scheduler/repository"
)

const (
	StatusAvailable     = "Available"
	StatusCancelled     = "Cancelled"
	StatusCancelledPast = "Cancelled (past)"
	StatusReserved      = "Reserved"
	StatusReservedPast  = "Reserved (past)"
)

// Integrity findings.
const (
	FindingPointsToNobody     = "points to nobody"
	FindingClaimedTwice       = "claimed by more than one owner"
	FindingWrongOwner         = "claimed by the wrong owner"
	FindingOwnedNotReserved   = "owned but not marked reserved"
	FindingReferencedNotTaken = "referenced by a record but not reserved"
)

// NoteForeignOwner marks a reservation whose owner records live in another project.
const NoteForeignOwner = "owner belongs to project %d; its records were not checked"

type AuditServiceInterface interface {
	AuditSlots(ctx context.Context) ([]dto.SlotVerification, *errors.AppError)
	AuditAppointments(ctx context.Context, configKey string) ([]dto.AppointmentVerification, *errors.AppError)
}

// AuditService reconciles the slot store against the appointment records. It never writes;
// each finding carries the dispatch actions an operator can run to repair it.
type AuditService struct {
	configs   Configs
	slots     repository.SlotRepositoryInterface
	records   repository.RecordRepositoryInterface
	formatter *formatter.Formatter
	projectID int64
}

func NewAuditService(configs Configs, slots repository.SlotRepositoryInterface, records repository.RecordRepositoryInterface, f *formatter.Formatter, projectID int64) *AuditService {
	return &AuditService{configs: configs, slots: slots, records: records, formatter: f, projectID: projectID}
}

type reference struct {
	configKey string
	owner     entity.Owner
}

func (r reference) params() map[string]any {
	return map[string]any{
		"config_key": r.configKey,
		"record_id":  r.owner.RecordID,
		"event_id":   r.owner.EventID,
		"instance":   r.owner.Instance,
	}
}

// AuditSlots classifies every slot of every configured store.
func (s *AuditService) AuditSlots(ctx context.Context) ([]dto.SlotVerification, *errors.AppError) {
	var stores []int64
	byStore := make(map[int64][]*entity.SchedulingConfig)
	for _, cfg := range s.configs.All() {
		if _, seen := byStore[cfg.SlotProjectID]; !seen {
			stores = append(stores, cfg.SlotProjectID)
		}
		byStore[cfg.SlotProjectID] = append(byStore[cfg.SlotProjectID], cfg)
	}

	now := s.formatter.Now()
	rows := []dto.SlotVerification{}
	for _, storeID := range stores {
		configs := byStore[storeID]
		refs := make(map[string][]reference)
		for _, cfg := range configs {
			values, err := s.records.ListFieldValues(ctx, s.projectID, cfg.EventID, cfg.SlotIDField)
			if err != nil {
				return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment records", err)
			}
			for _, v := range values {
				refs[v.Value] = append(refs[v.Value], reference{configKey: cfg.Key, owner: v.Owner.Normalized()})
			}
		}

		slots, err := s.slots.ListStore(ctx, storeID)
		if err != nil {
			return nil, slotError(err)
		}
		for i := range slots {
			rows = append(rows, s.classifySlot(configs[0].Key, &slots[i], refs[slots[i].ID], now))
		}
		logger.Debug("AuditService:AuditSlots:Store", "store_id", storeID, "slots", len(slots))
	}
	return rows, nil
}

func (s *AuditService) classifySlot(defaultKey string, slot *entity.Slot, refs []reference, now time.Time) dto.SlotVerification {
	key := defaultKey
	if len(refs) > 0 {
		key = refs[0].configKey
	}
	row := dto.SlotVerification{
		ConfigKey: key,
		StoreID:   slot.ProjectID,
		SlotID:    slot.ID,
		Date:      slot.Date,
		Time:      slot.Time,
		Title:     slot.Title,
		Owner:     slot.Owner(),
		Errors:    []string{},
		Actions:   []dto.RepairAction{},
	}

	past := false
	if instant, err := slot.Instant(s.formatter.Server()); err != nil {
		row.Errors = append(row.Errors, "invalid date or time")
	} else {
		past = instant.Before(now)
	}

	resetSlot := func(label string, markCancelled bool) dto.RepairAction {
		return dto.RepairAction{Label: label, Action: dto.ActionResetSlot, Params: map[string]any{
			"config_key": key, "slot_id": slot.ID, "mark_cancelled": markCancelled,
		}}
	}
	resetAppointments := func(skip *entity.Owner) {
		for _, ref := range refs {
			if skip != nil && ref.owner.Equal(*skip) {
				continue
			}
			row.Actions = append(row.Actions, dto.RepairAction{
				Label:  fmt.Sprintf("Reset appointment on record %s", ref.owner.RecordID),
				Action: dto.ActionResetAppointment,
				Params: ref.params(),
			})
		}
	}

	switch slot.State() {
	case entity.SlotAvailable, entity.SlotCancelled:
		switch {
		case slot.State() == entity.SlotAvailable:
			row.Status = StatusAvailable
			row.Actions = append(row.Actions, resetSlot("Cancel slot", true))
		case past:
			row.Status = StatusCancelledPast
		default:
			row.Status = StatusCancelled
			row.Actions = append(row.Actions, resetSlot("Un-cancel slot", false))
		}
		if len(refs) > 0 {
			row.Errors = append(row.Errors, FindingReferencedNotTaken)
			resetAppointments(nil)
		}

	case entity.SlotReserved:
		row.Status = StatusReserved
		if past {
			row.Status = StatusReservedPast
		}
		owner := *row.Owner
		switch {
		case owner.ProjectID != s.projectID:
			row.Notes = append(row.Notes, fmt.Sprintf(NoteForeignOwner, owner.ProjectID))
		case len(refs) == 0:
			row.Errors = append(row.Errors, FindingPointsToNobody)
			row.Actions = append(row.Actions, resetSlot("Reset slot", false))
		case len(refs) > 1:
			row.Errors = append(row.Errors, FindingClaimedTwice)
			resetAppointments(&owner)
		case !refs[0].owner.Equal(owner):
			row.Errors = append(row.Errors, FindingWrongOwner)
			row.Actions = append(row.Actions,
				resetSlot("Reset slot", false),
				dto.RepairAction{
					Label:  "Reset slot and appointment",
					Action: dto.ActionResetSlotAndAppointment,
					Params: mergeParams(refs[0].params(), map[string]any{"slot_id": slot.ID}),
				},
			)
		}

	case entity.SlotOwnedUnreserved:
		row.Status = StatusReserved
		row.Errors = append(row.Errors, FindingOwnedNotReserved)
		row.Actions = append(row.Actions, dto.RepairAction{
			Label:  "Reset slot and appointment",
			Action: dto.ActionResetSlotAndAppointment,
			Params: map[string]any{"config_key": key, "slot_id": slot.ID},
		})
	}

	row.OK = len(row.Errors) == 0
	return row
}

// AuditAppointments checks every record holding a slot reference for configKey.
func (s *AuditService) AuditAppointments(ctx context.Context, configKey string) ([]dto.AppointmentVerification, *errors.AppError) {
	cfg, err := s.configs.Get(configKey)
	if err != nil {
		return nil, configError(configKey, err)
	}
	values, err := s.records.ListFieldValues(ctx, s.projectID, cfg.EventID, cfg.SlotIDField)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment records", err)
	}

	rows := make([]dto.AppointmentVerification, 0, len(values))
	for _, v := range values {
		row, appErr := s.checkAppointment(ctx, cfg, v)
		if appErr != nil {
			return nil, appErr
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *AuditService) checkAppointment(ctx context.Context, cfg *entity.SchedulingConfig, v entity.FieldValue) (dto.AppointmentVerification, *errors.AppError) {
	ref := reference{configKey: cfg.Key, owner: v.Owner.Normalized()}
	row := dto.AppointmentVerification{
		ConfigKey: cfg.Key,
		Owner:     ref.owner,
		SlotID:    v.Value,
		Errors:    []string{},
		Actions:   []dto.RepairAction{},
	}
	resetAppointment := dto.RepairAction{Label: "Reset appointment", Action: dto.ActionResetAppointment, Params: ref.params()}

	slot, err := s.slots.Get(ctx, cfg.Key, v.Value)
	switch {
	case stderrors.Is(err, repository.ErrSlotNotFound):
		row.Errors = append(row.Errors, "slot does not exist")
		row.Actions = append(row.Actions, resetAppointment)
		return row, nil
	case stderrors.Is(err, repository.ErrSlotNotUnique):
		row.Errors = append(row.Errors, "slot id is not unique")
		return row, nil
	case err != nil:
		return row, slotError(err)
	}
	row.Date, row.Time = slot.Date, slot.Time

	owner := slot.Owner()
	switch {
	case slot.State() != entity.SlotReserved:
		row.Errors = append(row.Errors, "slot is not reserved")
		row.Actions = append(row.Actions, resetAppointment)
	case !owner.Equal(ref.owner):
		row.Errors = append(row.Errors, "slot is reserved by another record")
		row.Actions = append(row.Actions, resetAppointment)
	}

	if cfg.DatetimeField != "" && len(row.Errors) == 0 {
		stored, err := s.records.GetRecord(ctx, ref.owner, cfg.DatetimeField)
		if err != nil {
			return row, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment record", err)
		}
		expected, err := s.mirroredDatetime(slot, cfg.DatetimeFormat)
		if err != nil || stored[cfg.DatetimeField] != expected {
			row.Errors = append(row.Errors, "datetime field does not match the slot")
		}
	}

	if len(row.Errors) > 0 && owner != nil && owner.Equal(ref.owner) {
		row.Actions = append(row.Actions, dto.RepairAction{
			Label:  "Reset appointment and slot",
			Action: dto.ActionResetSlotAndAppointment,
			Params: mergeParams(ref.params(), map[string]any{"slot_id": slot.ID}),
		})
	}
	row.OK = len(row.Errors) == 0
	return row, nil
}

// mirroredDatetime is the value reserve writes into the datetime field for slot.
func (s *AuditService) mirroredDatetime(slot *entity.Slot, format entity.DatetimeFormat) (string, error) {
	instant, err := slot.Instant(s.formatter.Server())
	if err != nil {
		return "", err
	}
	return formatter.FormatFieldValue(instant.Format(entity.ServerTimestampFmt), format)
}

func mergeParams(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
