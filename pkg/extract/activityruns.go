package extract

import (
	"context"
	"fmt"
	"iter"

	"github.com/Ramsey-B/fern/pkg/datafactory"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/sanitize"
	"github.com/Ramsey-B/fern/pkg/stream"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var activityRunKeys = []string{
	"pipelineName", "pipelineRunId", "activityName", "activityType",
	"activityRunId", "linkedServiceName", "status", "activityRunStart",
	"activityRunEnd", "durationInMs", "input", "output", "error",
}

// getActivityRuns is the incremental core: resolve the watermark window,
// select the backlog of pipeline runs still missing activity detail, fetch
// each parent lazily, then stage and merge the flattened rows.
func (s *Service) getActivityRuns(ctx context.Context, req models.ExtractRequest, stamp models.Stamp) models.ExtractResult {
	ctx, span := tracing.StartSpan(ctx, "extract.Service.getActivityRuns")
	defer span.End()

	const functionName = models.APIGetActivityRuns
	log := s.logger.WithContext(ctx).WithFields(map[string]any{"api_name": functionName})

	window, err := s.resolveWindow(ctx, s.activityRuns.LastWatermark, s.offsetDays(req))
	if err != nil {
		return models.ExceptionResult(functionName, err)
	}
	log.Infof("Query window: %s to %s", window.After, window.Before)

	parents, err := s.activityRuns.PendingPipelineRuns(ctx, s.apiLimit(req))
	if err != nil {
		return models.ExceptionResult(functionName, err)
	}
	log.Infof("Backlog of %d pipeline runs", len(parents))

	seqs := make([]iter.Seq2[models.ActivityRunRow, error], len(parents))
	for i, runID := range parents {
		seqs[i] = s.fetchActivityRuns(ctx, req, runID, window, stamp)
	}

	var rows []models.ActivityRunRow
	var failedRuns []string
	for row, err := range stream.Concat(seqs...) {
		if err != nil {
			// skip the failing parent, keep landing the healthy ones;
			// the backlog picks it up again next invocation
			log.WithError(err).Warn("Skipping pipeline run after fetch failure")
			failedRuns = append(failedRuns, err.Error())
			continue
		}
		rows = append(rows, row)
	}
	log.Infof("Total count of records: %d", len(rows))

	var impacted int64
	if len(rows) > 0 {
		if _, err := s.activityRuns.Stage(ctx, rows); err != nil {
			return models.ExceptionResult(functionName, err)
		}
		impacted, err = s.activityRuns.Merge(ctx)
		if err != nil {
			return models.ExceptionResult(functionName, err)
		}
	} else {
		log.Info("No records to load")
	}

	message := map[string]any{
		"impacted_rows": impacted,
		"record_count":  len(rows),
	}
	if len(failedRuns) > 0 {
		message["failed_pipeline_runs"] = failedRuns
	}
	return models.SuccessResult(functionName, message)
}

// fetchActivityRuns lazily streams the flattened activity runs of one
// pipeline run. A fetch failure ends the stream with a single error element
// naming the parent.
func (s *Service) fetchActivityRuns(ctx context.Context, req models.ExtractRequest, runID string, window datafactory.Window, stamp models.Stamp) iter.Seq2[models.ActivityRunRow, error] {
	return func(yield func(models.ActivityRunRow, error) bool) {
		raw := s.client.QueryActivityRuns(ctx, req.ResourceGroup, req.FactoryName, runID, window)
		for record, err := range raw {
			if err != nil {
				yield(models.ActivityRunRow{}, fmt.Errorf("pipeline run %s: %w", runID, err))
				return
			}
			if !yield(flattenActivityRun(record, stamp), nil) {
				return
			}
		}
	}
}

func flattenActivityRun(record map[string]any, stamp models.Stamp) models.ActivityRunRow {
	return models.ActivityRunRow{
		AdditionalProperties: sanitize.JSONText(additionalProperties(record, activityRunKeys...)),
		PipelineName:         sanitize.String(record["pipelineName"]),
		PipelineRunID:        sanitize.String(record["pipelineRunId"]),
		ActivityName:         sanitize.String(record["activityName"]),
		ActivityType:         sanitize.String(record["activityType"]),
		ActivityRunID:        sanitize.String(record["activityRunId"]),
		LinkedServiceName:    sanitize.String(record["linkedServiceName"]),
		Status:               sanitize.String(record["status"]),
		ActivityRunStart:     sanitize.StartTimestamp(record["activityRunStart"]),
		ActivityRunEnd:       sanitize.EndTimestamp(record["activityRunEnd"]),
		DurationInMS:         sanitize.String(record["durationInMs"]),
		DurationHHMISS:       sanitize.DurationHHMISS(record["durationInMs"]),
		Input:                sanitize.JSONText(record["input"]),
		Output:               sanitize.JSONText(record["output"]),
		Error:                sanitize.JSONText(record["error"]),
		Audit:                models.NewAudit(stamp),
	}
}
