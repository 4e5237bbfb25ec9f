package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/controller"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/core/params"
	"timezone-scheduler/core/utils"
	repairDto "timezone-scheduler/modules/repairlog/dto"
	"timezone-scheduler/modules/scheduler/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/service"

	"github.com/labstack/echo/v4"
)

// ContextFilter answers which configs apply to a form on an event.
type ContextFilter interface {
	FilterForContext(fields []string, eventID int64) map[string]string
}

// RepairLister pages through the repair log.
type RepairLister interface {
	List(ctx context.Context, projectID int64, configKey string, queryParams params.QueryParams) (*repairDto.PaginatedRepairResponse, *errors.AppError)
}

type actionFunc func(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError)

type action struct {
	privileged bool
	run        actionFunc
}

// SchedulerController turns dispatch actions into scheduler service calls.
type SchedulerController struct {
	controller.BaseController
	configs ContextFilter
	engine  service.ReservationServiceInterface
	audit   service.AuditServiceInterface
	links   *service.CancelLinkService
	reports *service.ReportService
	repairs RepairLister
	actions map[string]action
}

func NewSchedulerController(
	configs ContextFilter,
	engine service.ReservationServiceInterface,
	audit service.AuditServiceInterface,
	links *service.CancelLinkService,
	reports *service.ReportService,
	repairs RepairLister,
) *SchedulerController {
	c := &SchedulerController{
		BaseController: controller.NewBaseController(),
		configs:        configs,
		engine:         engine,
		audit:          audit,
		links:          links,
		reports:        reports,
		repairs:        repairs,
	}
	c.actions = map[string]action{
		dto.ActionGetAppointmentOptions:          {run: c.getAppointmentOptions},
		dto.ActionGetSlot:                        {run: c.getSlot},
		dto.ActionReserveSlot:                    {run: c.reserveSlot},
		dto.ActionCancelAppointment:              {run: c.cancelAppointment},
		dto.ActionGetCancelConfirmation:          {run: c.getCancelConfirmation},
		dto.ActionCancelAppointmentFromURL:       {run: c.cancelAppointmentFromURL},
		dto.ActionGetConfigsForContext:           {run: c.getConfigsForContext},
		dto.ActionResetSlot:                      {privileged: true, run: c.resetSlot},
		dto.ActionResetAppointment:               {privileged: true, run: c.resetAppointment},
		dto.ActionResetSlotAndAppointment:        {privileged: true, run: c.resetSlotAndAppointment},
		dto.ActionGetSlotsVerificationData:       {privileged: true, run: c.getSlotsVerificationData},
		dto.ActionGetAppointmentVerificationData: {privileged: true, run: c.getAppointmentVerificationData},
		dto.ActionGetRepairLog:                   {privileged: true, run: c.getRepairLog},
		dto.ActionExportVerificationReport:       {privileged: true, run: c.exportVerificationReport},
	}
	return c
}

// Dispatch handles POST /scheduler/actions/:action
// @Summary Run a scheduler action
// @Tags Scheduler
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param action path string true "Action name"
// @Success 200 {object} controller.ActionResponse
// @Router /scheduler/actions/{action} [post]
func (c *SchedulerController) Dispatch(ctx echo.Context) (err error) {
	name := ctx.Param("action")
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return c.ActionFailure(ctx, name, errors.NewAppError(errors.ErrUnauthorized, "User not authenticated", nil))
	}
	act, ok := c.actions[name]
	if !ok {
		return c.ActionFailure(ctx, name, errors.NewAppError(errors.ErrUnknownAction, fmt.Sprintf("Unknown action %q", name), nil))
	}
	if act.privileged && !claims.Privileged {
		return c.ActionFailure(ctx, name, errors.NewAppError(errors.ErrForbidden, "Administrative privilege required", nil))
	}

	payload, readErr := io.ReadAll(io.LimitReader(ctx.Request().Body, 1<<20))
	if readErr != nil {
		return c.ActionFailure(ctx, name, errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", readErr))
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("SchedulerController:Dispatch:Panic", "action", name, "panic", fmt.Sprint(r))
			err = c.ActionFailure(ctx, name, fmt.Errorf("panic in action %s: %v", name, r))
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), constants.DefaultRequestTimeout)
	defer cancel()
	reqCtx = service.WithActor(reqCtx, claims.Subject)

	data, appErr := act.run(reqCtx, claims, payload)
	if appErr != nil {
		return c.ActionFailure(ctx, name, appErr)
	}
	return c.ActionSuccess(ctx, data)
}

func decode(payload []byte, dst any) *errors.AppError {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", err)
	}
	return nil
}

func ownerFromClaims(claims *utils.TokenClaims) entity.Owner {
	return entity.Owner{
		ProjectID: claims.ProjectID,
		RecordID:  claims.RecordID,
		EventID:   claims.EventID,
		Instance:  claims.Instance,
	}
}

// ownerFromRequest names another record of the caller's project.
func ownerFromRequest(claims *utils.TokenClaims, recordID string, eventID int64, instance int) entity.Owner {
	return entity.Owner{ProjectID: claims.ProjectID, RecordID: recordID, EventID: eventID, Instance: instance}
}

func (c *SchedulerController) getAppointmentOptions(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.OptionsRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.engine.GetAppointmentOptions(ctx, req.ConfigKey, req.Timezone, ownerFromClaims(claims))
}

func (c *SchedulerController) getSlot(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.SlotRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.engine.GetSlot(ctx, req.ConfigKey, req.SlotID, req.Timezone)
}

func (c *SchedulerController) reserveSlot(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ReserveRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	fields, appErr := c.engine.Reserve(ctx, req.ConfigKey, req.SlotID, req.Timezone, ownerFromClaims(claims))
	if appErr != nil {
		return nil, appErr
	}
	return &dto.FieldsResponse{Fields: fields}, nil
}

func (c *SchedulerController) cancelAppointment(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.CancelRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	fields, appErr := c.engine.Cancel(ctx, req.ConfigKey, req.SlotID, ownerFromClaims(claims), claims.Privileged)
	if appErr != nil {
		return nil, appErr
	}
	return &dto.FieldsResponse{Fields: fields}, nil
}

func (c *SchedulerController) getCancelConfirmation(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.CancelLinkRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.links.Prepare(ctx, req.Key)
}

func (c *SchedulerController) cancelAppointmentFromURL(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.CancelLinkRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	fields, appErr := c.links.Cancel(ctx, req.Key, req.Token)
	if appErr != nil {
		return nil, appErr
	}
	return &dto.FieldsResponse{Fields: fields}, nil
}

func (c *SchedulerController) getConfigsForContext(_ context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ConfigsForContextRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	if req.EventID == 0 {
		req.EventID = claims.EventID
	}
	return c.configs.FilterForContext(req.Fields, req.EventID), nil
}

func (c *SchedulerController) resetSlot(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ResetSlotRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	if appErr := c.engine.ResetSlot(ctx, req.ConfigKey, req.SlotID, req.Note, req.MarkCancelled); appErr != nil {
		return nil, appErr
	}
	return map[string]string{"slot_id": req.SlotID}, nil
}

func (c *SchedulerController) resetAppointment(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ResetAppointmentRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	fields, appErr := c.engine.ResetAppointment(ctx, req.ConfigKey, ownerFromRequest(claims, req.RecordID, req.EventID, req.Instance))
	if appErr != nil {
		return nil, appErr
	}
	return &dto.FieldsResponse{Fields: fields}, nil
}

func (c *SchedulerController) resetSlotAndAppointment(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ResetSlotAndAppointmentRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	owner := entity.Owner{}
	if req.RecordID != "" {
		owner = ownerFromRequest(claims, req.RecordID, req.EventID, req.Instance)
	}
	fields, appErr := c.engine.ResetSlotAndAppointment(ctx, req.ConfigKey, req.SlotID, owner)
	if appErr != nil {
		return nil, appErr
	}
	return &dto.FieldsResponse{Fields: fields}, nil
}

func (c *SchedulerController) getSlotsVerificationData(ctx context.Context, _ *utils.TokenClaims, _ []byte) (any, *errors.AppError) {
	return c.audit.AuditSlots(ctx)
}

func (c *SchedulerController) getAppointmentVerificationData(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.AppointmentVerificationRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.audit.AuditAppointments(ctx, req.ConfigKey)
}

func (c *SchedulerController) getRepairLog(ctx context.Context, claims *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	if c.repairs == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Repair log is not available", nil)
	}
	var req dto.RepairLogRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.repairs.List(ctx, claims.ProjectID, req.ConfigKey, *params.Normalize(req.Page, req.Limit))
}

func (c *SchedulerController) exportVerificationReport(ctx context.Context, _ *utils.TokenClaims, payload []byte) (any, *errors.AppError) {
	var req dto.ExportReportRequest
	if appErr := decode(payload, &req); appErr != nil {
		return nil, appErr
	}
	return c.reports.Export(ctx, req.ConfigKey)
}

// PublicCancelConfirmation handles GET /public/scheduler/cancel?key=
// @Summary Validate a cancel link and issue a confirmation token
// @Tags Scheduler
// @Produce json
// @Param key query string true "Sealed cancel key"
// @Router /public/scheduler/cancel [get]
func (c *SchedulerController) PublicCancelConfirmation(ctx echo.Context) error {
	key := ctx.QueryParam("key")
	if key == "" {
		return c.BadRequest(errors.ErrInvalidCancelLink, "Missing cancel key")
	}
	resp, appErr := c.links.Prepare(ctx.Request().Context(), key)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, resp, "Please confirm the cancellation")
}

// PublicCancel handles POST /public/scheduler/cancel
// @Summary Cancel an appointment from its link
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param request body dto.CancelLinkRequest true "Key and confirmation token"
// @Router /public/scheduler/cancel [post]
func (c *SchedulerController) PublicCancel(ctx echo.Context) error {
	req := new(dto.CancelLinkRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	if req.Key == "" || req.Token == "" {
		return c.BadRequest(errors.ErrInvalidCancelLink, "Missing cancel key or confirmation token")
	}
	if _, appErr := c.links.Cancel(ctx.Request().Context(), req.Key, req.Token); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, nil, "Your appointment has been cancelled")
}
