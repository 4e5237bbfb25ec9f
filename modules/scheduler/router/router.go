package router

import (
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/modules/scheduler/controller"

	"github.com/labstack/echo/v4"
)

// SchedulerRouter handles scheduler routes
type SchedulerRouter struct {
	SchedulerController *controller.SchedulerController
}

func NewSchedulerRouter(schedulerController *controller.SchedulerController) *SchedulerRouter {
	return &SchedulerRouter{
		SchedulerController: schedulerController,
	}
}

// Setup registers the dispatch surface and the public cancel-link routes
func (r *SchedulerRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	actionRoutes := v1.Group("/scheduler", mw.AuthMiddleware())
	actionRoutes.POST("/actions/:action", r.SchedulerController.Dispatch)

	publicRoutes := v1.Group("/public/scheduler", mw.RateLimit())
	publicRoutes.GET("/cancel", r.SchedulerController.PublicCancelConfirmation)
	publicRoutes.POST("/cancel", r.SchedulerController.PublicCancel)
}
