package controller

import (
	"timezone-scheduler/core/controller"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/core/params"
	"timezone-scheduler/modules/repairlog/service"

	"github.com/labstack/echo/v4"
)

type RepairController struct {
	service *service.RepairService
	controller.BaseController
}

func NewRepairController(service *service.RepairService) *RepairController {
	return &RepairController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// GetRepairs lists the caller's project repairs.
// @Router /scheduler/repairs [get]
func (c *RepairController) GetRepairs(ctx echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized", nil)
	}
	if !claims.Privileged {
		return c.Forbidden(errors.ErrForbidden, "Administrative privilege required", nil)
	}

	queryParams := params.NewQueryParams(ctx)
	result, appErr := c.service.List(ctx.Request().Context(), claims.ProjectID, ctx.QueryParam("config_key"), *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Repair log retrieved successfully")
}
