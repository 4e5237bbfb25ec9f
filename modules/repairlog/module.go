package repairlog

import (
	"timezone-scheduler/core/database"
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/modules/repairlog/controller"
	"timezone-scheduler/modules/repairlog/repository"
	"timezone-scheduler/modules/repairlog/router"
	"timezone-scheduler/modules/repairlog/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db database.IDatabase, mw *middleware.Middleware) *service.RepairService {
	repo := repository.NewRepairRepository(db)
	svc := service.NewRepairService(repo)
	ctrl := controller.NewRepairController(svc)

	router.NewRepairRouter(ctrl).Register(e, mw)

	return svc
}
