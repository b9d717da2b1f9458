// Package pipelineruns persists flattened pipeline runs through the
// stage-promote-merge flow.
package pipelineruns

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
	targetTable  = "t_adf_meta_pipeline_runs"
	stagingTable = "t_adf_meta_pipeline_runs_stg"
)

var columns = []string{
	"additional_properties", "run_id", "run_group_id", "is_latest",
	"pipeline_name", "parameters", "run_dimensions", "invoked_by",
	"last_updated", "run_start", "run_end",
	"duration_in_ms", "duration_hh_mi_ss", "status", "message",
	"etl_insert_ts", "etl_update_ts", "etl_insert_id", "etl_update_id",
}

var jsonColumns = []string{"additional_properties", "parameters", "run_dimensions", "invoked_by"}

// Repository handles pipeline run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pipeline run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// LastWatermark returns the max etl_update_ts of the target table. The second
// return is false when the table is empty.
func (r *Repository) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelineruns.Repository.LastWatermark")
	defer span.End()

	var watermark sql.NullTime
	query := fmt.Sprintf("SELECT max(etl_update_ts) FROM %s", targetTable)
	if err := r.db.GetContext(ctx, &watermark, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read pipeline runs watermark")
		return time.Time{}, false, fmt.Errorf("failed to read watermark: %w", err)
	}

	if !watermark.Valid {
		return time.Time{}, false, nil
	}
	return watermark.Time.UTC(), true, nil
}

// Stage truncate-loads the staging table and promotes the JSON columns in one
// transaction. Returns the number of staged rows.
func (r *Repository) Stage(ctx context.Context, rows []models.PipelineRunRow) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelineruns.Repository.Stage")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := staging.Truncate(txCtx, tx, stagingTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to truncate pipeline runs staging")
		return 0, err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.AdditionalProperties, row.RunID, row.RunGroupID, row.IsLatest,
			row.PipelineName, row.Parameters, row.RunDimensions, row.InvokedBy,
			row.LastUpdated, row.RunStart, row.RunEnd,
			row.DurationInMS, row.DurationHHMISS, row.Status, row.Message,
			row.ETLInsertTS, row.ETLUpdateTS, row.ETLInsertID, row.ETLUpdateID,
		}
	}

	staged, err := staging.InsertChunked(txCtx, tx, stagingTable, columns, values)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load pipeline runs staging")
		return 0, err
	}

	if _, err := staging.Promote(txCtx, tx, stagingTable, jsonColumns); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to promote pipeline runs staging")
		return 0, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"staged": staged}).Info("Staged pipeline runs")
	return staged, nil
}

// Merge upserts staged rows into the target table, keyed by run_id.
func (r *Repository) Merge(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelineruns.Repository.Merge")
	defer span.End()

	query := fmt.Sprintf(`
		MERGE INTO %s tgt
		USING (SELECT DISTINCT * FROM %s) src
		ON tgt.run_id = src.run_id
		WHEN MATCHED THEN UPDATE SET
			additional_properties = src.additional_properties::jsonb,
			run_group_id = src.run_group_id,
			is_latest = src.is_latest,
			pipeline_name = src.pipeline_name,
			parameters = src.parameters::jsonb,
			run_dimensions = src.run_dimensions::jsonb,
			invoked_by = src.invoked_by::jsonb,
			last_updated = src.last_updated,
			run_start = src.run_start,
			run_end = src.run_end,
			duration_in_ms = src.duration_in_ms,
			duration_hh_mi_ss = src.duration_hh_mi_ss,
			status = src.status,
			message = src.message,
			etl_update_ts = src.etl_update_ts,
			etl_update_id = src.etl_update_id
		WHEN NOT MATCHED THEN INSERT (
			additional_properties, run_id, run_group_id, is_latest,
			pipeline_name, parameters, run_dimensions, invoked_by,
			last_updated, run_start, run_end,
			duration_in_ms, duration_hh_mi_ss, status, message,
			etl_insert_ts, etl_update_ts, etl_insert_id, etl_update_id
		) VALUES (
			src.additional_properties::jsonb, src.run_id, src.run_group_id, src.is_latest,
			src.pipeline_name, src.parameters::jsonb, src.run_dimensions::jsonb, src.invoked_by::jsonb,
			src.last_updated, src.run_start, src.run_end,
			src.duration_in_ms, src.duration_hh_mi_ss, src.status, src.message,
			src.etl_insert_ts, src.etl_update_ts, src.etl_insert_id, src.etl_update_id
		)
	`, targetTable, stagingTable)

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge pipeline runs")
		return 0, fmt.Errorf("failed to merge pipeline runs: %w", err)
	}

	impacted, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{"impacted_rows": impacted}).Info("Merged pipeline runs")
	return impacted, nil
}
