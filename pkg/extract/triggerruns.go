package extract

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/sanitize"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var triggerRunKeys = []string{
	"triggerRunId", "triggerName", "triggerType", "triggerRunTimestamp",
	"status", "properties", "triggeredPipelines", "runDimension",
	"dependencyStatus",
}

// getTriggerRuns incrementally extracts trigger runs last updated within the
// watermark window.
func (s *Service) getTriggerRuns(ctx context.Context, req models.ExtractRequest, stamp models.Stamp) models.ExtractResult {
	ctx, span := tracing.StartSpan(ctx, "extract.Service.getTriggerRuns")
	defer span.End()

	const functionName = models.APIGetTriggerRuns
	log := s.logger.WithContext(ctx).WithFields(map[string]any{"api_name": functionName})

	window, err := s.resolveWindow(ctx, s.triggerRuns.LastWatermark, s.offsetDays(req))
	if err != nil {
		return models.ExceptionResult(functionName, err)
	}
	log.Infof("Query window: %s to %s", window.After, window.Before)

	var rows []models.TriggerRunRow
	for record, err := range s.client.QueryTriggerRuns(ctx, req.ResourceGroup, req.FactoryName, window) {
		if err != nil {
			return models.ExceptionResult(functionName, err)
		}
		rows = append(rows, flattenTriggerRun(record, stamp))
	}
	log.Infof("Total count of records: %d", len(rows))

	var impacted int64
	if len(rows) > 0 {
		if _, err := s.triggerRuns.Stage(ctx, rows); err != nil {
			return models.ExceptionResult(functionName, err)
		}
		impacted, err = s.triggerRuns.Merge(ctx)
		if err != nil {
			return models.ExceptionResult(functionName, err)
		}
	} else {
		log.Info("No records to load")
	}

	return models.SuccessResult(functionName, map[string]any{
		"impacted_rows": impacted,
		"record_count":  len(rows),
	})
}

func flattenTriggerRun(record map[string]any, stamp models.Stamp) models.TriggerRunRow {
	return models.TriggerRunRow{
		AdditionalProperties: sanitize.JSONText(additionalProperties(record, triggerRunKeys...)),
		TriggerRunID:         sanitize.String(record["triggerRunId"]),
		TriggerName:          sanitize.String(record["triggerName"]),
		TriggerType:          sanitize.String(record["triggerType"]),
		TriggerRunTimestamp:  sanitize.Timestamp(record["triggerRunTimestamp"]),
		Status:               sanitize.String(record["status"]),
		Properties:           sanitize.JSONText(record["properties"]),
		TriggeredPipelines:   sanitize.JSONText(record["triggeredPipelines"]),
		RunDimension:         sanitize.JSONText(record["runDimension"]),
		DependencyStatus:     sanitize.JSONText(record["dependencyStatus"]),
		Audit:                models.NewAudit(stamp),
	}
}
