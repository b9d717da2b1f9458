// Package triggerruns persists flattened trigger runs through the
// stage-promote-merge flow.
package triggerruns

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/staging"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	targetTable  = "t_adf_meta_trigger_runs"
	stagingTable = "t_adf_meta_trigger_runs_stg"
)

var columns = []string{
	"additional_properties", "trigger_run_id", "trigger_name", "trigger_type",
	"trigger_run_timestamp", "status", "properties", "triggered_pipelines",
	"run_dimension", "dependency_status",
	"etl_insert_ts", "etl_update_ts", "etl_insert_id", "etl_update_id",
}

var jsonColumns = []string{"additional_properties", "properties", "triggered_pipelines", "run_dimension", "dependency_status"}

// Repository handles trigger run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new trigger run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// LastWatermark returns the max etl_update_ts of the target table. The second
// return is false when the table is empty.
func (r *Repository) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "triggerruns.Repository.LastWatermark")
	defer span.End()

	var watermark sql.NullTime
	query := fmt.Sprintf("SELECT max(etl_update_ts) FROM %s", targetTable)
	if err := r.db.GetContext(ctx, &watermark, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read trigger runs watermark")
		return time.Time{}, false, fmt.Errorf("failed to read watermark: %w", err)
	}

	if !watermark.Valid {
		return time.Time{}, false, nil
	}
	return watermark.Time.UTC(), true, nil
}

// Stage truncate-loads the staging table and promotes the JSON columns in one
// transaction. Returns the number of staged rows.
func (r *Repository) Stage(ctx context.Context, rows []models.TriggerRunRow) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "triggerruns.Repository.Stage")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := staging.Truncate(txCtx, tx, stagingTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to truncate trigger runs staging")
		return 0, err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.AdditionalProperties, row.TriggerRunID, row.TriggerName, row.TriggerType,
			row.TriggerRunTimestamp, row.Status, row.Properties, row.TriggeredPipelines,
			row.RunDimension, row.DependencyStatus,
			row.ETLInsertTS, row.ETLUpdateTS, row.ETLInsertID, row.ETLUpdateID,
		}
	}

	staged, err := staging.InsertChunked(txCtx, tx, stagingTable, columns, values)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load trigger runs staging")
		return 0, err
	}

	if _, err := staging.Promote(txCtx, tx, stagingTable, jsonColumns); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to promote trigger runs staging")
		return 0, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"staged": staged}).Info("Staged trigger runs")
	return staged, nil
}

// Merge upserts staged rows into the target table, keyed by trigger_run_id.
func (r *Repository) Merge(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "triggerruns.Repository.Merge")
	defer span.End()

	query := fmt.Sprintf(`
		MERGE INTO %s tgt
		USING (SELECT DISTINCT * FROM %s) src
		ON tgt.trigger_run_id = src.trigger_run_id
		WHEN MATCHED THEN UPDATE SET
			additional_properties = src.additional_properties::jsonb,
			trigger_name = src.trigger_name,
			trigger_type = src.trigger_type,
			trigger_run_timestamp = src.trigger_run_timestamp,
			status = src.status,
			properties = src.properties::jsonb,
			triggered_pipelines = src.triggered_pipelines::jsonb,
			run_dimension = src.run_dimension::jsonb,
			dependency_status = src.dependency_status::jsonb,
			etl_update_ts = src.etl_update_ts,
			etl_update_id = src.etl_update_id
		WHEN NOT MATCHED THEN INSERT (
			additional_properties, trigger_run_id, trigger_name, trigger_type,
			trigger_run_timestamp, status, properties, triggered_pipelines,
			run_dimension, dependency_status,
			etl_insert_ts, etl_update_ts, etl_insert_id, etl_update_id
		) VALUES (
			src.additional_properties::jsonb, src.trigger_run_id, src.trigger_name, src.trigger_type,
			src.trigger_run_timestamp, src.status, src.properties::jsonb, src.triggered_pipelines::jsonb,
			src.run_dimension::jsonb, src.dependency_status::jsonb,
			src.etl_insert_ts, src.etl_update_ts, src.etl_insert_id, src.etl_update_id
		)
	`, targetTable, stagingTable)

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge trigger runs")
		return 0, fmt.Errorf("failed to merge trigger runs: %w", err)
	}

	impacted, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{"impacted_rows": impacted}).Info("Merged trigger runs")
	return impacted, nil
}
