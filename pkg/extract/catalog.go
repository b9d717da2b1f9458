package extract

import (
	"context"
	"fmt"
	"iter"

	"github.com/Ramsey-B/fern/internal/repositories/catalog"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/sanitize"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// listPageSize is the management API's page size for resource listings. The
// api_limit of a listing request caps pages, so records cap at limit * size.
const listPageSize = 50

// getResources handles the full-refresh listing extractors for pipelines,
// datasets and linked services. The whole listing replaces the target table.
func (s *Service) getResources(ctx context.Context, req models.ExtractRequest, stamp models.Stamp) models.ExtractResult {
	ctx, span := tracing.StartSpan(ctx, "extract.Service.getResources")
	defer span.End()

	functionName := req.APIName
	log := s.logger.WithContext(ctx).WithFields(map[string]any{"api_name": functionName})

	var table string
	var listing iter.Seq2[map[string]any, error]
	switch req.APIName {
	case models.APIGetPipelines:
		table = catalog.TablePipelines
		listing = s.client.ListPipelines(ctx, req.ResourceGroup, req.FactoryName)
	case models.APIGetDatasets:
		table = catalog.TableDatasets
		listing = s.client.ListDatasets(ctx, req.ResourceGroup, req.FactoryName)
	case models.APIGetLinkedServices:
		table = catalog.TableLinkedServices
		listing = s.client.ListLinkedServices(ctx, req.ResourceGroup, req.FactoryName)
	default:
		return models.ExceptionResult(functionName, fmt.Errorf("unknown resource listing %q", req.APIName))
	}

	maxRecords := s.listLimit(req) * listPageSize

	var rows []models.FactoryResourceRow
	for record, err := range listing {
		if err != nil {
			return models.ExceptionResult(functionName, err)
		}
		rows = append(rows, flattenResource(record, stamp))
		if len(rows) >= maxRecords {
			log.Warnf("Listing truncated at %d records", maxRecords)
			break
		}
	}
	log.Infof("Total count of records: %d", len(rows))

	impacted, err := s.catalog.ReplaceResources(ctx, table, rows)
	if err != nil {
		return models.ExceptionResult(functionName, err)
	}

	return models.SuccessResult(functionName, map[string]any{
		"impacted_rows": impacted,
		"record_count":  len(rows),
	})
}

func flattenResource(record map[string]any, stamp models.Stamp) models.FactoryResourceRow {
	return models.FactoryResourceRow{
		ID:         sanitize.String(record["id"]),
		Name:       sanitize.String(record["name"]),
		Type:       sanitize.String(record["type"]),
		Properties: sanitize.JSONText(record["properties"]),
		Etag:       sanitize.String(record["etag"]),
		Audit:      models.NewAudit(stamp),
	}
}

var triggerPropertyKeys = []string{
	"type", "description", "runtimeState", "annotations", "pipelines",
}

// getTriggers full-refreshes the trigger master table from the trigger
// listing. All trigger types land in the one master shape; the type-specific
// schedule and event detail stays inside additional_properties.
func (s *Service) getTriggers(ctx context.Context, req models.ExtractRequest, stamp models.Stamp) models.ExtractResult {
	ctx, span := tracing.StartSpan(ctx, "extract.Service.getTriggers")
	defer span.End()

	const functionName = models.APIGetTriggers
	log := s.logger.WithContext(ctx).WithFields(map[string]any{"api_name": functionName})

	maxRecords := s.listLimit(req) * listPageSize

	var rows []models.TriggerRow
	for record, err := range s.client.ListTriggers(ctx, req.ResourceGroup, req.FactoryName) {
		if err != nil {
			return models.ExceptionResult(functionName, err)
		}
		rows = append(rows, flattenTrigger(record, stamp))
		if len(rows) >= maxRecords {
			log.Warnf("Listing truncated at %d records", maxRecords)
			break
		}
	}
	log.Infof("Total count of records: %d", len(rows))

	impacted, err := s.catalog.ReplaceTriggers(ctx, rows)
	if err != nil {
		return models.ExceptionResult(functionName, err)
	}

	return models.SuccessResult(functionName, map[string]any{
		"impacted_rows": impacted,
		"record_count":  len(rows),
	})
}

func flattenTrigger(record map[string]any, stamp models.Stamp) models.TriggerRow {
	properties, _ := record["properties"].(map[string]any)

	return models.TriggerRow{
		AdditionalProperties: sanitize.JSONText(additionalProperties(properties, triggerPropertyKeys...)),
		ID:                   sanitize.String(record["id"]),
		Name:                 sanitize.String(record["name"]),
		Etag:                 sanitize.String(record["etag"]),
		Type:                 sanitize.String(properties["type"]),
		Description:          sanitize.String(properties["description"]),
		RuntimeState:         sanitize.String(properties["runtimeState"]),
		Annotations:          sanitize.JSONText(properties["annotations"]),
		PipelinesAndParams:   sanitize.JSONText(properties["pipelines"]),
		Audit:                models.NewAudit(stamp),
	}
}
