// Package activityruns persists flattened activity runs through the
// stage-promote-merge flow.
package activityruns

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
	targetTable  = "t_adf_meta_activity_runs"
	stagingTable = "t_adf_meta_activity_runs_stg"
)

var columns = []string{
	"additional_properties", "pipeline_name", "pipeline_run_id", "activity_name",
	"activity_type", "activity_run_id", "linked_service_name", "status",
	"activity_run_start", "activity_run_end", "duration_in_ms", "duration_hh_mi_ss",
	"input", "output", "error",
	"etl_insert_ts", "etl_update_ts", "etl_insert_id", "etl_update_id",
}

var jsonColumns = []string{"additional_properties", "input", "output", "error"}

// Repository handles activity run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new activity run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// LastWatermark returns the max etl_update_ts of the target table. The second
// return is false when the table is empty.
func (r *Repository) LastWatermark(ctx context.Context) (time.Time, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "activityruns.Repository.LastWatermark")
	defer span.End()

	var watermark sql.NullTime
	query := fmt.Sprintf("SELECT max(etl_update_ts) FROM %s", targetTable)
	if err := r.db.GetContext(ctx, &watermark, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read activity runs watermark")
		return time.Time{}, false, fmt.Errorf("failed to read watermark: %w", err)
	}

	if !watermark.Valid {
		return time.Time{}, false, nil
	}
	return watermark.Time.UTC(), true, nil
}

// PendingPipelineRuns returns the backlog of pipeline run ids whose activity
// runs still need fetching: runs with no activity rows yet, plus runs with an
// in-flight activity. Oldest parents first, capped at limit.
func (r *Repository) PendingPipelineRuns(ctx context.Context, limit int) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "activityruns.Repository.PendingPipelineRuns")
	defer span.End()

	query := fmt.Sprintf(`
		SELECT p.run_id
		FROM t_adf_meta_pipeline_runs p
		LEFT OUTER JOIN %s a ON p.run_id = a.pipeline_run_id
		WHERE a.pipeline_run_id IS NULL OR a.status = 'InProgress'
		GROUP BY p.run_id, p.etl_update_ts
		ORDER BY p.etl_update_ts ASC
		LIMIT $1
	`, targetTable)

	var runIDs []string
	if err := r.db.SelectContext(ctx, &runIDs, query, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"limit": limit}).Error("Failed to select pending pipeline runs")
		return nil, fmt.Errorf("failed to select pending pipeline runs: %w", err)
	}
	return runIDs, nil
}

// Stage truncate-loads the staging table and promotes the JSON columns, all
// in one transaction. Returns the number of staged rows.
func (r *Repository) Stage(ctx context.Context, rows []models.ActivityRunRow) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "activityruns.Repository.Stage")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := staging.Truncate(txCtx, tx, stagingTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to truncate activity runs staging")
		return 0, err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.AdditionalProperties, row.PipelineName, row.PipelineRunID, row.ActivityName,
			row.ActivityType, row.ActivityRunID, row.LinkedServiceName, row.Status,
			row.ActivityRunStart, row.ActivityRunEnd, row.DurationInMS, row.DurationHHMISS,
			row.Input, row.Output, row.Error,
			row.ETLInsertTS, row.ETLUpdateTS, row.ETLInsertID, row.ETLUpdateID,
		}
	}

	staged, err := staging.InsertChunked(txCtx, tx, stagingTable, columns, values)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load activity runs staging")
		return 0, err
	}

	promoted, err := staging.Promote(txCtx, tx, stagingTable, jsonColumns)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to promote activity runs staging")
		return 0, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"staged": staged, "promoted": promoted}).Info("Staged activity runs")
	return staged, nil
}

// Merge upserts staged rows into the target table, keyed by
// (pipeline_run_id, activity_run_id). Re-merging the same staged batch
// refreshes etl_update_ts but inserts nothing new.
func (r *Repository) Merge(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "activityruns.Repository.Merge")
	defer span.End()

	query := fmt.Sprintf(`
		MERGE INTO %s tgt
		USING (SELECT DISTINCT * FROM %s) src
		ON tgt.activity_run_id = src.activity_run_id AND tgt.pipeline_run_id = src.pipeline_run_id
		WHEN MATCHED THEN UPDATE SET
			additional_properties = src.additional_properties::jsonb,
			pipeline_name = src.pipeline_name,
			activity_name = src.activity_name,
			activity_type = src.activity_type,
			linked_service_name = src.linked_service_name,
			status = src.status,
			activity_run_start = src.activity_run_start,
			activity_run_end = src.activity_run_end,
			duration_in_ms = src.duration_in_ms,
			duration_hh_mi_ss = src.duration_hh_mi_ss,
			input = src.input::jsonb,
			output = src.output::jsonb,
			error = src.error::jsonb,
			etl_update_ts = src.etl_update_ts,
			etl_update_id = src.etl_update_id
		WHEN NOT MATCHED THEN INSERT (
			additional_properties, pipeline_name, pipeline_run_id, activity_name,
			activity_type, activity_run_id, linked_service_name, status,
			activity_run_start, activity_run_end, duration_in_ms, duration_hh_mi_ss,
			input, output, error,
			etl_insert_ts, etl_update_ts, etl_insert_id, etl_update_id
		) VALUES (
			src.additional_properties::jsonb, src.pipeline_name, src.pipeline_run_id, src.activity_name,
			src.activity_type, src.activity_run_id, src.linked_service_name, src.status,
			src.activity_run_start, src.activity_run_end, src.duration_in_ms, src.duration_hh_mi_ss,
			src.input::jsonb, src.output::jsonb, src.error::jsonb,
			src.etl_insert_ts, src.etl_update_ts, src.etl_insert_id, src.etl_update_id
		)
	`, targetTable, stagingTable)

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge activity runs")
		return 0, fmt.Errorf("failed to merge activity runs: %w", err)
	}

	impacted, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{"impacted_rows": impacted}).Info("Merged activity runs")
	return impacted, nil
}
