package repository

import (
	"context"

	"timezone-scheduler/core/database"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/modules/scheduler/entity"

	"github.com/jmoiron/sqlx"
)

type RecordRepositoryInterface interface {
	GetRecord(ctx context.Context, owner entity.Owner, fields ...string) (map[string]string, error)
	SaveRecord(ctx context.Context, owner entity.Owner, values map[string]string) error
	ListFieldValues(ctx context.Context, projectID, eventID int64, field string) ([]entity.FieldValue, error)
}

// RecordRepository stores appointment record fields as one row per field.
// An empty value deletes the row.
type RecordRepository struct {
	db database.IDatabase
}

func NewRecordRepository(db database.IDatabase) *RecordRepository {
	return &RecordRepository{db: db}
}

type fieldRow struct {
	Field string `db:"field_name"`
	Value string `db:"value"`
}

// GetRecord reads the requested fields, or all when none are named. Missing fields read as "".
func (r *RecordRepository) GetRecord(ctx context.Context, owner entity.Owner, fields ...string) (map[string]string, error) {
	owner = owner.Normalized()
	query := `SELECT field_name, value FROM tz_record_data
		WHERE project_id = ? AND record_id = ? AND event_id = ? AND instance = ?`
	args := []any{owner.ProjectID, owner.RecordID, owner.EventID, owner.Instance}
	if len(fields) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND field_name IN (?)`, append(args, fields)...)
		if err != nil {
			return nil, err
		}
	}

	var rows []fieldRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		logger.Error("RecordRepository:GetRecord:Error:", err)
		return nil, err
	}

	out := make(map[string]string, len(fields)+len(rows))
	for _, f := range fields {
		out[f] = ""
	}
	for _, row := range rows {
		out[row.Field] = row.Value
	}
	return out, nil
}

// SaveRecord applies all values in one transaction.
func (r *RecordRepository) SaveRecord(ctx context.Context, owner entity.Owner, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	owner = owner.Normalized()

	tx, err := r.db.BeginTxx(ctx)
	if err != nil {
		logger.Error("RecordRepository:SaveRecord:Begin:Error:", err)
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := tx.Rebind(`INSERT INTO tz_record_data (project_id, record_id, event_id, instance, field_name, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, record_id, event_id, instance, field_name) DO UPDATE SET value = excluded.value`)
	remove := tx.Rebind(`DELETE FROM tz_record_data
		WHERE project_id = ? AND record_id = ? AND event_id = ? AND instance = ? AND field_name = ?`)

	for field, value := range values {
		if value == "" {
			_, err = tx.ExecContext(ctx, remove, owner.ProjectID, owner.RecordID, owner.EventID, owner.Instance, field)
		} else {
			_, err = tx.ExecContext(ctx, upsert, owner.ProjectID, owner.RecordID, owner.EventID, owner.Instance, field, value)
		}
		if err != nil {
			logger.Error("RecordRepository:SaveRecord:Exec:Error:", "field", field, "error", err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("RecordRepository:SaveRecord:Commit:Error:", err)
		return err
	}
	return nil
}

type fieldValueRow struct {
	RecordID string `db:"record_id"`
	EventID  int64  `db:"event_id"`
	Instance int    `db:"instance"`
	Value    string `db:"value"`
}

// ListFieldValues returns every non-empty value of field on eventID across the project.
func (r *RecordRepository) ListFieldValues(ctx context.Context, projectID, eventID int64, field string) ([]entity.FieldValue, error) {
	query := `SELECT record_id, event_id, instance, value FROM tz_record_data
		WHERE project_id = ? AND event_id = ? AND field_name = ? AND value <> ''
		ORDER BY record_id, instance`
	var rows []fieldValueRow
	if err := r.db.SelectContext(ctx, &rows, query, projectID, eventID, field); err != nil {
		logger.Error("RecordRepository:ListFieldValues:Error:", err)
		return nil, err
	}
	out := make([]entity.FieldValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.FieldValue{
			Owner: entity.Owner{ProjectID: projectID, RecordID: row.RecordID, EventID: row.EventID, Instance: row.Instance},
			Value: row.Value,
		})
	}
	return out, nil
}
