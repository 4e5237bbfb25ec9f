package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type IDatabase interface {
	ExecContext(ctx context.Context, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	Rebind(query string) string
	SQLx() *sqlx.DB
	Close() error
}

type Database struct {
	sqlx *sqlx.DB
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

// InitDB opens and pings the configured database.
func InitDB(config DatabaseConfig) (*Database, error) {
	logger.Info("Initializing database...", "driver", config.Driver)

	driver, dsn, err := dataSource(config)
	if err != nil {
		return nil, err
	}

	sqlxDB, err := sqlx.Connect(driver, dsn)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB := sqlxDB.DB
	if driver == DriverSQLite {
		// SQLite allows one writer; serialize through a single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(constants.DatabaseMaxOpenConns)
		sqlDB.SetMaxIdleConns(constants.DatabaseMaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(constants.DatabaseConnMaxLifetime) * time.Minute)
	}

	if err = sqlDB.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database initialized successfully",
		"driver", driver,
		"host", config.Host,
		"port", config.Port,
		"database", config.DBName,
		"path", config.Path,
	)

	return &Database{sqlx: sqlxDB}, nil
}

// NewFromSQLx wraps an already opened connection.
func NewFromSQLx(db *sqlx.DB) *Database {
	return &Database{sqlx: db}
}

func dataSource(config DatabaseConfig) (string, string, error) {
	switch strings.ToLower(config.Driver) {
	case "", DriverPostgres:
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = constants.DatabaseSSLMode
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, sslMode)
		return DriverPostgres, dsn, nil
	case DriverSQLite:
		path := strings.TrimSpace(config.Path)
		if path == "" {
			return "", "", fmt.Errorf("sqlite path is required")
		}
		if path == ":memory:" {
			return DriverSQLite, path, nil
		}
		return DriverSQLite, path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

func (d *Database) ExecContext(ctx context.Context, query string, args ...any) error {
	_, err := d.sqlx.ExecContext(ctx, d.sqlx.Rebind(query), args...)
	return err
}

func (d *Database) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.GetContext(ctx, dest, d.sqlx.Rebind(query), args...)
}

func (d *Database) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.SelectContext(ctx, dest, d.sqlx.Rebind(query), args...)
}

func (d *Database) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return d.sqlx.NamedExecContext(ctx, query, arg)
}

func (d *Database) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return d.sqlx.BeginTxx(ctx, nil)
}

func (d *Database) Rebind(query string) string {
	return d.sqlx.Rebind(query)
}

func (d *Database) SQLx() *sqlx.DB {
	return d.sqlx
}

func (d *Database) Close() error {
	if d == nil || d.sqlx == nil {
		return nil
	}
	return d.sqlx.Close()
}
