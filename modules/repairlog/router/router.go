package router

import (
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/modules/repairlog/controller"

	"github.com/labstack/echo/v4"
)

type RepairRouter struct {
	controller *controller.RepairController
}

func NewRepairRouter(controller *controller.RepairController) *RepairRouter {
	return &RepairRouter{controller: controller}
}

func (r *RepairRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	group := e.Group("/scheduler/repairs", mw.AuthMiddleware())
	group.GET("", r.controller.GetRepairs)
}
