// Package catalog persists the full-refresh factory listings: pipelines,
// datasets, linked services and triggers. These flows truncate-load the
// target table directly; there is no staging merge because each listing is a
// complete snapshot.
package catalog

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/staging"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Target tables for the full-refresh listings.
const (
	TablePipelines      = "t_adf_meta_pipelines"
	TableDatasets       = "t_adf_meta_datasets"
	TableLinkedServices = "t_adf_meta_linked_services"
	TableTriggers       = "t_adf_meta_trigger_master"
)

var resourceColumns = []string{
	"id", "name", "type", "properties", "etag",
	"etl_insert_ts", "etl_update_ts", "etl_insert_id", "etl_update_id",
}

var triggerColumns = []string{
	"additional_properties", "id", "name", "etag", "type", "description",
	"runtime_state", "annotations", "pipelines_and_params",
	"etl_insert_ts", "etl_update_ts", "etl_insert_id", "etl_update_id",
}

// Repository handles catalog persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new catalog repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func validResourceTable(table string) error {
	switch table {
	case TablePipelines, TableDatasets, TableLinkedServices:
		return nil
	}
	return fmt.Errorf("unknown resource table %q", table)
}

// ReplaceResources swaps the full contents of a resource table for the given
// snapshot, in one transaction. Returns the number of loaded rows.
func (r *Repository) ReplaceResources(ctx context.Context, table string, rows []models.FactoryResourceRow) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.ReplaceResources")
	defer span.End()

	if err := validResourceTable(table); err != nil {
		return 0, err
	}

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := staging.Truncate(txCtx, tx, table); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to truncate %s", table)
		return 0, err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.ID, row.Name, row.Type, row.Properties, row.Etag,
			row.ETLInsertTS, row.ETLUpdateTS, row.ETLInsertID, row.ETLUpdateID,
		}
	}

	// properties is jsonb in the target, so the insert itself rejects
	// unparseable payloads
	loaded, err := staging.InsertChunked(txCtx, tx, table, resourceColumns, values)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to load %s", table)
		return 0, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "loaded": loaded}).Info("Replaced resource table")
	return loaded, nil
}

// ReplaceTriggers swaps the full contents of the trigger master table for the
// given snapshot, in one transaction. Returns the number of loaded rows.
func (r *Repository) ReplaceTriggers(ctx context.Context, rows []models.TriggerRow) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.ReplaceTriggers")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := staging.Truncate(txCtx, tx, TableTriggers); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to truncate trigger master")
		return 0, err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.AdditionalProperties, row.ID, row.Name, row.Etag, row.Type, row.Description,
			row.RuntimeState, row.Annotations, row.PipelinesAndParams,
			row.ETLInsertTS, row.ETLUpdateTS, row.ETLInsertID, row.ETLUpdateID,
		}
	}

	loaded, err := staging.InsertChunked(txCtx, tx, TableTriggers, triggerColumns, values)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load trigger master")
		return 0, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"loaded": loaded}).Info("Replaced trigger master")
	return loaded, nil
}
