package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	repairDto "timezone-scheduler/modules/repairlog/dto"
	"timezone-scheduler/modules/scheduler/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/formatter"
	"timezone-scheduler/modules/scheduler/repository"
)

type ReservationServiceInterface interface {
	GetAppointmentOptions(ctx context.Context, configKey, timezone string, owner entity.Owner) (*dto.OptionsResponse, *errors.AppError)
	GetSlot(ctx context.Context, configKey, slotID, timezone string) (*dto.SlotResponse, *errors.AppError)
	Reserve(ctx context.Context, configKey, slotID, timezone string, owner entity.Owner) (map[string]string, *errors.AppError)
	Cancel(ctx context.Context, configKey, slotID string, owner entity.Owner, allowPast bool) (map[string]string, *errors.AppError)
	ResetSlot(ctx context.Context, configKey, slotID, note string, markCancelled bool) *errors.AppError
	ResetAppointment(ctx context.Context, configKey string, owner entity.Owner) (map[string]string, *errors.AppError)
	ResetSlotAndAppointment(ctx context.Context, configKey, slotID string, owner entity.Owner) (map[string]string, *errors.AppError)
}

// ReservationService moves slots between Available, Reserved and Cancelled and mirrors
// each reservation into the owning record. Every transition holds the slot's lock.
type ReservationService struct {
	configs   Configs
	slots     repository.SlotRepositoryInterface
	records   repository.RecordRepositoryInterface
	locker    cache.Locker
	formatter *formatter.Formatter
	links     *LinkSigner
	repairs   RepairRecorder
	settings  Settings
}

func NewReservationService(
	configs Configs,
	slots repository.SlotRepositoryInterface,
	records repository.RecordRepositoryInterface,
	locker cache.Locker,
	f *formatter.Formatter,
	links *LinkSigner,
	repairs RepairRecorder,
	settings Settings,
) *ReservationService {
	return &ReservationService{
		configs:   configs,
		slots:     slots,
		records:   records,
		locker:    locker,
		formatter: f,
		links:     links,
		repairs:   repairs,
		settings:  settings.withDefaults(),
	}
}

func (s *ReservationService) config(key string) (*entity.SchedulingConfig, *errors.AppError) {
	cfg, err := s.configs.Get(key)
	if err != nil {
		return nil, configError(key, err)
	}
	return cfg, nil
}

// slotFilterValue is the owner record's filter field when configured, else the static value.
func (s *ReservationService) slotFilterValue(ctx context.Context, cfg *entity.SchedulingConfig, owner entity.Owner) (string, error) {
	if cfg.SlotFilterField == "" || owner.RecordID == "" {
		return cfg.SlotFilterValue, nil
	}
	values, err := s.records.GetRecord(ctx, owner, cfg.SlotFilterField)
	if err != nil {
		return "", err
	}
	return values[cfg.SlotFilterField], nil
}

// ownerFor fills the event from cfg when the caller context carries none.
func ownerFor(cfg *entity.SchedulingConfig, owner entity.Owner) entity.Owner {
	if owner.EventID == 0 {
		owner.EventID = cfg.EventID
	}
	return owner.Normalized()
}

func tenant(owner entity.Owner) string {
	return strconv.FormatInt(owner.ProjectID, 10)
}

// GetAppointmentOptions lists the future, available slots the owner may pick from.
func (s *ReservationService) GetAppointmentOptions(ctx context.Context, configKey, timezone string, owner entity.Owner) (*dto.OptionsResponse, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}
	client, err := s.formatter.Location(timezone)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Unknown timezone %q", timezone), err)
	}

	owner = ownerFor(cfg, owner)
	filterValue, err := s.slotFilterValue(ctx, cfg, owner)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment record", err)
	}
	slots, err := s.slots.List(ctx, configKey, repository.ListFilter{
		Tenant:          tenant(owner),
		OnlyAvailable:   true,
		SlotFilterValue: filterValue,
	})
	if err != nil {
		return nil, slotError(err)
	}

	options, err := s.formatter.BuildOptions(cfg, slots, client.String(), true)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Failed to render appointment options", err)
	}
	resp := &dto.OptionsResponse{
		Timezone: client.String(),
		Message:  fmt.Sprintf("%d appointments available", len(options)),
		Options:  options,
	}
	if len(options) > 0 {
		resp.Options = append([]formatter.Option{{ID: "", Text: "Select an appointment..."}}, options...)
	}
	return resp, nil
}

// GetSlot returns one slot rendered for timezone, past or not.
func (s *ReservationService) GetSlot(ctx context.Context, configKey, slotID, timezone string) (*dto.SlotResponse, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}
	slot, err := s.slots.Get(ctx, configKey, slotID)
	if err != nil {
		return nil, slotError(err)
	}
	if timezone == "" {
		timezone = slot.ParticipantTimezone
	}
	option, err := s.formatter.BuildOption(cfg, slot, timezone)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Failed to render appointment slot", err)
	}
	return &dto.SlotResponse{Slot: *slot, State: slot.State(), Option: option}, nil
}

// Reserve claims slotID for owner and mirrors the reservation into the owner's record.
func (s *ReservationService) Reserve(ctx context.Context, configKey, slotID, timezone string, owner entity.Owner) (map[string]string, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}
	if cfg.Disabled {
		return nil, errors.NewAppError(errors.ErrInvalidConfig, "This appointment field is disabled", nil)
	}
	owner = ownerFor(cfg, owner)
	if !owner.Valid() || strings.TrimSpace(slotID) == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "A slot id and a complete owner record are required", nil)
	}
	client, err := s.formatter.Location(timezone)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Unknown timezone %q", timezone), err)
	}

	var fields map[string]string
	appErr = withSlotLock(ctx, s.locker, s.settings, cfg.SlotProjectID, slotID, func() *errors.AppError {
		var inner *errors.AppError
		fields, inner = s.reserveLocked(ctx, cfg, slotID, client, owner)
		return inner
	})
	if appErr != nil {
		return nil, appErr
	}
	logger.Info("ReservationService:Reserve:Done", "config_key", configKey, "slot_id", slotID, "owner", owner.String())
	return fields, nil
}

func (s *ReservationService) reserveLocked(ctx context.Context, cfg *entity.SchedulingConfig, slotID string, client *time.Location, owner entity.Owner) (map[string]string, *errors.AppError) {
	slot, err := s.slots.Get(ctx, cfg.Key, slotID)
	if err != nil {
		return nil, slotError(err)
	}
	if slot.State() != entity.SlotAvailable {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "This appointment slot is no longer available", nil)
	}
	if slot.ProjectFilter != "" && slot.ProjectFilter != tenant(owner) {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "This appointment slot is not available to this project", nil)
	}
	filterValue, err := s.slotFilterValue(ctx, cfg, owner)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment record", err)
	}
	if slot.SlotFilter != filterValue {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "This appointment slot is not available to this record", nil)
	}
	instant, err := slot.Instant(s.formatter.Server())
	if err != nil {
		return nil, errors.NewAppError(errors.ErrSlotIntegrity, "Appointment slot has an invalid date or time", err)
	}
	now := s.formatter.Now()
	if instant.Before(now) {
		return nil, errors.NewAppError(errors.ErrSlotUnavailable, "This appointment slot is in the past", nil)
	}

	current, err := s.records.GetRecord(ctx, owner, cfg.SlotIDField)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment record", err)
	}
	if ref := current[cfg.SlotIDField]; ref != "" && ref != slotID {
		return nil, errors.NewAppError(errors.ErrAlreadyHasAppointment, "This record already has an appointment; cancel it first", nil)
	}

	option, err := s.formatter.BuildOption(cfg, slot, client.String())
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Failed to render appointment slot", err)
	}

	slot.Reserve(owner, now)
	slot.SourceRecordURL = s.settings.RecordURL(owner)
	slot.SourceProjectTitle = s.settings.ProjectTitle
	slot.ParticipantTimezone = client.String()
	slot.ParticipantDescription = option.Description
	if err := s.slots.Save(ctx, cfg.Key, slot); err != nil {
		return nil, errors.NewAppError(errors.ErrStoreWrite, "Failed to save appointment slot", err)
	}

	fields, err := s.mirrorFields(cfg, slot, option)
	if err != nil {
		logger.Error("ReservationService:Reserve:MirrorFields", "config_key", cfg.Key, "slot_id", slotID, "error", err)
		return nil, errors.NewAppError(errors.ErrStoreWrite, "The slot was reserved but the appointment record could not be updated", err)
	}
	if err := s.records.SaveRecord(ctx, owner, fields); err != nil {
		logger.Error("ReservationService:Reserve:SaveRecord", "config_key", cfg.Key, "slot_id", slotID, "owner", owner.String(), "error", err)
		return nil, errors.NewAppError(errors.ErrStoreWrite, "The slot was reserved but the appointment record could not be updated", err)
	}
	return fields, nil
}

// mirrorFields builds the owner record values for a freshly reserved slot.
func (s *ReservationService) mirrorFields(cfg *entity.SchedulingConfig, slot *entity.Slot, option formatter.Option) (map[string]string, error) {
	fields := map[string]string{cfg.SlotIDField: slot.ID}
	if cfg.DatetimeField != "" {
		v, err := formatter.FormatFieldValue(option.ServerDT, cfg.DatetimeFormat)
		if err != nil {
			return nil, err
		}
		fields[cfg.DatetimeField] = v
	}
	if cfg.TextDateField != "" {
		fields[cfg.TextDateField] = option.Text
	}
	if cfg.DescriptionField != "" {
		fields[cfg.DescriptionField] = option.Description
	}
	if cfg.CancelURLField != "" {
		if s.links == nil {
			logger.Warn("ReservationService:mirrorFields:NoCancelLinks", "config_key", cfg.Key)
		} else {
			key, err := KeyFor(cfg.Key, slot)
			if err != nil {
				return nil, err
			}
			link, err := s.links.BuildURL(key)
			if err != nil {
				return nil, err
			}
			fields[cfg.CancelURLField] = link
		}
	}
	if cfg.SlotURLField != "" {
		fields[cfg.SlotURLField] = s.settings.SlotURL(cfg.SlotProjectID, slot.ID)
	}
	return fields, nil
}

// clearedFields maps every mirrored field of cfg to "".
func clearedFields(cfg *entity.SchedulingConfig) map[string]string {
	fields := make(map[string]string)
	for _, f := range cfg.MirroredFields() {
		fields[f] = ""
	}
	return fields
}

// Cancel returns a slot reserved by owner to Available and clears the owner's mirrored fields.
// A past slot needs allowPast, which only privileged callers may set.
func (s *ReservationService) Cancel(ctx context.Context, configKey, slotID string, owner entity.Owner, allowPast bool) (map[string]string, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}
	owner = ownerFor(cfg, owner)
	if !owner.Valid() {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "A complete owner record is required", nil)
	}

	var fields map[string]string
	appErr = withSlotLock(ctx, s.locker, s.settings, cfg.SlotProjectID, slotID, func() *errors.AppError {
		slot, err := s.slots.Get(ctx, configKey, slotID)
		if err != nil {
			return slotError(err)
		}
		current := slot.Owner()
		if slot.State() != entity.SlotReserved || current == nil || !current.Equal(owner) {
			return errors.NewAppError(errors.ErrNotReserved, "This appointment is not reserved by this record", nil)
		}
		instant, err := slot.Instant(s.formatter.Server())
		if err != nil {
			return errors.NewAppError(errors.ErrSlotIntegrity, "Appointment slot has an invalid date or time", err)
		}
		if instant.Before(s.formatter.Now()) && !allowPast {
			return errors.NewAppError(errors.ErrPastAppointment, "Past appointments can only be cancelled by an administrator", nil)
		}

		slot.ClearReservation()
		if err := s.slots.Save(ctx, configKey, slot); err != nil {
			return errors.NewAppError(errors.ErrStoreWrite, "Failed to save appointment slot", err)
		}
		fields = clearedFields(cfg)
		if err := s.records.SaveRecord(ctx, owner, fields); err != nil {
			logger.Error("ReservationService:Cancel:SaveRecord", "config_key", configKey, "slot_id", slotID, "owner", owner.String(), "error", err)
			return errors.NewAppError(errors.ErrStoreWrite, "The slot was released but the appointment record could not be updated", err)
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	logger.Info("ReservationService:Cancel:Done", "config_key", configKey, "slot_id", slotID, "owner", owner.String())
	return fields, nil
}

// ResetSlot clears a slot's ownership without touching any record. markCancelled leaves it
// withheld with note; otherwise it becomes Available.
func (s *ReservationService) ResetSlot(ctx context.Context, configKey, slotID, note string, markCancelled bool) *errors.AppError {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return appErr
	}
	var previous *entity.Owner
	appErr = withSlotLock(ctx, s.locker, s.settings, cfg.SlotProjectID, slotID, func() *errors.AppError {
		slot, err := s.slots.Get(ctx, configKey, slotID)
		if err != nil {
			return slotError(err)
		}
		previous = slot.Owner()
		if markCancelled {
			slot.MarkCancelled(s.formatter.Now(), note)
		} else {
			slot.ClearReservation()
		}
		if err := s.slots.Save(ctx, configKey, slot); err != nil {
			return errors.NewAppError(errors.ErrStoreWrite, "Failed to save appointment slot", err)
		}
		return nil
	})
	if appErr != nil {
		return appErr
	}

	req := &repairDto.RecordRepairRequest{
		Action: "resetSlot", ConfigKey: configKey, SlotID: slotID, Note: note,
		Data: map[string]interface{}{"mark_cancelled": markCancelled},
	}
	if previous != nil {
		req.Data["previous_owner"] = previous.String()
	}
	s.recordRepair(ctx, req)
	return nil
}

// ResetAppointment clears owner's mirrored fields without touching any slot.
func (s *ReservationService) ResetAppointment(ctx context.Context, configKey string, owner entity.Owner) (map[string]string, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}
	owner = ownerFor(cfg, owner)
	if !owner.Valid() {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "A complete owner record is required", nil)
	}

	current, err := s.records.GetRecord(ctx, owner, cfg.SlotIDField)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to read appointment record", err)
	}
	ref := current[cfg.SlotIDField]

	fields := clearedFields(cfg)
	write := func() *errors.AppError {
		if err := s.records.SaveRecord(ctx, owner, fields); err != nil {
			return errors.NewAppError(errors.ErrStoreWrite, "Failed to update appointment record", err)
		}
		return nil
	}
	if ref != "" {
		appErr = withSlotLock(ctx, s.locker, s.settings, cfg.SlotProjectID, ref, write)
	} else {
		appErr = write()
	}
	if appErr != nil {
		return nil, appErr
	}

	s.recordRepair(ctx, &repairDto.RecordRepairRequest{
		Action: "resetAppointment", ConfigKey: configKey, SlotID: ref,
		RecordID: owner.RecordID, EventID: owner.EventID, Instance: owner.Instance,
	})
	return fields, nil
}

// ResetSlotAndAppointment makes the slot Available and clears the record's mirrored fields.
// Without an owner the slot's current owner is used.
func (s *ReservationService) ResetSlotAndAppointment(ctx context.Context, configKey, slotID string, owner entity.Owner) (map[string]string, *errors.AppError) {
	cfg, appErr := s.config(configKey)
	if appErr != nil {
		return nil, appErr
	}

	var fields map[string]string
	appErr = withSlotLock(ctx, s.locker, s.settings, cfg.SlotProjectID, slotID, func() *errors.AppError {
		slot, err := s.slots.Get(ctx, configKey, slotID)
		if err != nil {
			return slotError(err)
		}
		if owner.RecordID == "" {
			if current := slot.Owner(); current != nil {
				owner = *current
			}
		}
		owner = ownerFor(cfg, owner)

		slot.ClearReservation()
		if err := s.slots.Save(ctx, configKey, slot); err != nil {
			return errors.NewAppError(errors.ErrStoreWrite, "Failed to save appointment slot", err)
		}
		if !owner.Valid() {
			return nil
		}
		fields = clearedFields(cfg)
		if err := s.records.SaveRecord(ctx, owner, fields); err != nil {
			return errors.NewAppError(errors.ErrStoreWrite, "The slot was reset but the appointment record could not be updated", err)
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}

	s.recordRepair(ctx, &repairDto.RecordRepairRequest{
		Action: "resetSlotAndAppointment", ConfigKey: configKey, SlotID: slotID,
		RecordID: owner.RecordID, EventID: owner.EventID, Instance: owner.Instance,
	})
	if fields == nil {
		fields = map[string]string{}
	}
	return fields, nil
}

func (s *ReservationService) recordRepair(ctx context.Context, req *repairDto.RecordRepairRequest) {
	if s.repairs == nil {
		return
	}
	req.ProjectID = s.settings.ProjectID
	req.Actor = actorFrom(ctx)
	if err := s.repairs.Record(ctx, req); err != nil {
		logger.Error("ReservationService:recordRepair", "action", req.Action, "error", err)
	}
}
