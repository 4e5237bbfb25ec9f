package database

import (
	"context"
	"fmt"

	"timezone-scheduler/core/logger"
)

// schema is portable between Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tz_slots (
		project_id              BIGINT       NOT NULL,
		slot_id                 VARCHAR(100) NOT NULL,
		date                    VARCHAR(10)  NOT NULL DEFAULT '',
		time                    VARCHAR(8)   NOT NULL DEFAULT '',
		title                   TEXT         NOT NULL DEFAULT '',
		project_filter          VARCHAR(100) NOT NULL DEFAULT '',
		slot_filter             VARCHAR(100) NOT NULL DEFAULT '',
		reserved_ts             TIMESTAMP    NULL,
		source_project_id       BIGINT       NULL,
		source_record_id        VARCHAR(100) NULL,
		source_event_id         BIGINT       NULL,
		source_instance_id      INTEGER      NULL,
		source_record_url       TEXT         NOT NULL DEFAULT '',
		source_project_title    TEXT         NOT NULL DEFAULT '',
		participant_timezone    VARCHAR(64)  NOT NULL DEFAULT '',
		participant_description TEXT         NOT NULL DEFAULT '',
		completed               BOOLEAN      NOT NULL DEFAULT FALSE,
		admin_note              TEXT         NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, slot_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tz_slots_date_time ON tz_slots (project_id, date, time)`,
	`CREATE TABLE IF NOT EXISTS tz_record_data (
		project_id BIGINT       NOT NULL,
		record_id  VARCHAR(100) NOT NULL,
		event_id   BIGINT       NOT NULL,
		instance   INTEGER      NOT NULL DEFAULT 1,
		field_name VARCHAR(100) NOT NULL,
		value      TEXT         NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, record_id, event_id, instance, field_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tz_record_data_field ON tz_record_data (project_id, event_id, field_name)`,
	`CREATE TABLE IF NOT EXISTS tz_repair_log (
		id         VARCHAR(36)  NOT NULL PRIMARY KEY,
		project_id BIGINT       NOT NULL,
		action     VARCHAR(64)  NOT NULL,
		config_key VARCHAR(200) NOT NULL DEFAULT '',
		slot_id    VARCHAR(100) NOT NULL DEFAULT '',
		record_id  VARCHAR(100) NOT NULL DEFAULT '',
		event_id   BIGINT       NOT NULL DEFAULT 0,
		instance   INTEGER      NOT NULL DEFAULT 0,
		note       TEXT         NOT NULL DEFAULT '',
		actor      VARCHAR(200) NOT NULL DEFAULT '',
		data       TEXT         NOT NULL DEFAULT '{}',
		created_at TIMESTAMP    NOT NULL,
		updated_at TIMESTAMP    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tz_repair_log_project ON tz_repair_log (project_id, created_at)`,
}

// Migrate creates the scheduler tables when missing.
func Migrate(ctx context.Context, db IDatabase) error {
	for i, stmt := range schema {
		if err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("Database:Migrate", "statement", i, "error", err)
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	logger.Info("Database:Migrate:Done", "statements", len(schema))
	return nil
}
