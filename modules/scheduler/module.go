package scheduler

import (
	"fmt"
	"strings"
	"time"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/config"
	"timezone-scheduler/core/database"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/middleware"
	repairService "timezone-scheduler/modules/repairlog/service"
	"timezone-scheduler/modules/scheduler/controller"
	"timezone-scheduler/modules/scheduler/formatter"
	"timezone-scheduler/modules/scheduler/registry"
	"timezone-scheduler/modules/scheduler/report"
	"timezone-scheduler/modules/scheduler/repository"
	"timezone-scheduler/modules/scheduler/router"
	"timezone-scheduler/modules/scheduler/service"

	"github.com/labstack/echo/v4"
)

// Components are the wired scheduler services.
type Components struct {
	Registry   *registry.Registry
	Engine     *service.ReservationService
	Audit      *service.AuditService
	CancelLink *service.CancelLinkService
	Reports    *service.ReportService
}

// Build wires the scheduler without any HTTP surface.
func Build(db database.IDatabase, locker cache.Locker, cfg *config.Config, repairs *repairService.RepairService) (*Components, error) {
	sc := cfg.Scheduler

	server := time.Local
	if tz := strings.TrimSpace(sc.ServerTimezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler.server_timezone: %w", err)
		}
		server = loc
	}

	reg := registry.NewRegistry(func() []config.InstanceConfig { return sc.Instances })
	slots := repository.NewSlotRepository(db, reg)
	records := repository.NewRecordRepository(db)
	f := formatter.New(server, time.Now)

	var signer *service.LinkSigner
	if sc.CancelLinkSecret != "" {
		var err error
		signer, err = service.NewLinkSigner(sc.CancelLinkSecret, cfg.PublicBaseURL())
		if err != nil {
			return nil, fmt.Errorf("cancel links: %w", err)
		}
	} else {
		logger.Warn("Scheduler:Build:CancelLinksDisabled", "reason", "scheduler.cancel_link_secret is empty")
	}

	settings := service.Settings{
		ProjectID:    sc.ProjectID,
		ProjectTitle: sc.ProjectTitle,
		BaseURL:      cfg.PublicBaseURL(),
		LockWait:     sc.LockWait,
		LockTTL:      sc.LockTTL,
	}

	var recorder service.RepairRecorder
	if repairs != nil {
		recorder = repairs
	}
	engine := service.NewReservationService(reg, slots, records, locker, f, signer, recorder, settings)
	audit := service.NewAuditService(reg, slots, records, f, sc.ProjectID)

	return &Components{
		Registry:   reg,
		Engine:     engine,
		Audit:      audit,
		CancelLink: service.NewCancelLinkService(signer, slots, engine, sc.CancelLinkSecret, sc.CancelTokenTTL, time.Now),
		Reports:    service.NewReportService(reg, audit, report.NewExporter(cfg.Report), time.Now),
	}, nil
}

// Init wires the scheduler and registers its routes
func Init(e *echo.Echo, db database.IDatabase, locker cache.Locker, cfg *config.Config, repairs *repairService.RepairService, mw *middleware.Middleware) (*Components, error) {
	components, err := Build(db, locker, cfg, repairs)
	if err != nil {
		return nil, err
	}
	var lister controller.RepairLister
	if repairs != nil {
		lister = repairs
	}
	ctrl := controller.NewSchedulerController(components.Registry, components.Engine, components.Audit, components.CancelLink, components.Reports, lister)
	router.NewSchedulerRouter(ctrl).Setup(e, mw)
	return components, nil
}
