package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/config"
	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/database"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/modules/repairlog"
	"timezone-scheduler/modules/scheduler"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// Deps are the process-wide backends shared by the HTTP server and the CLI.
type Deps struct {
	DB     *database.Database
	Locker cache.Locker
	redis  *cache.RedisCache
}

// Open connects the database (migrating when enabled) and picks a lock backend:
// Redis when redis.addr is set, in-process locks otherwise.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	db, err := database.InitDB(database.DatabaseConfig{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	deps := &Deps{DB: db}
	if cfg.Redis.Addr == "" {
		logger.Warn("Server:Open:LocalLocks", "reason", "redis.addr is empty; slot locks only hold within this process")
		deps.Locker = cache.NewLocalLocker()
		return deps, nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	deps.redis = rc
	deps.Locker = rc
	return deps, nil
}

func (d *Deps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.Error("Server:Close:Redis", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		logger.Error("Server:Close:Database", err)
	}
}

// New builds the echo instance with every module mounted.
func New(cfg *config.Config, deps *Deps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())

	mw := middleware.NewMiddleware(cfg.Auth.JWTSecret, cfg.Server.PublicRateLimit, cfg.Server.PublicRateBurst)

	repairs := repairlog.Init(e.Group("/api/v1"), deps.DB, mw)
	if _, err := scheduler.Init(e, deps.DB, deps.Locker, cfg, repairs, mw); err != nil {
		return nil, err
	}

	e.GET("/healthz", func(c echo.Context) error {
		if err := deps.DB.SQLx().PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e, nil
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
func Run(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	e, err := New(cfg, deps)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	serveErr := make(chan error, 1)
	logger.Info("Server:Run:Listening", "addr", addr)
	go func() {
		serveErr <- e.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("Server:Run:Stopped")
		return nil
	case err := <-serveErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
