// Package extract orchestrates the metadata extractors. Each extractor pulls
// records from the Data Factory management API, flattens them into warehouse
// rows and lands them through its repository, returning the uniform result
// envelope regardless of outcome.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/datafactory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ActivityRunStore persists activity runs and answers the backlog queries.
type ActivityRunStore interface {
	LastWatermark(ctx context.Context) (time.Time, bool, error)
	PendingPipelineRuns(ctx context.Context, limit int) ([]string, error)
	Stage(ctx context.Context, rows []models.ActivityRunRow) (int64, error)
	Merge(ctx context.Context) (int64, error)
}

// PipelineRunStore persists pipeline runs.
type PipelineRunStore interface {
	LastWatermark(ctx context.Context) (time.Time, bool, error)
	Stage(ctx context.Context, rows []models.PipelineRunRow) (int64, error)
	Merge(ctx context.Context) (int64, error)
}

// TriggerRunStore persists trigger runs.
type TriggerRunStore interface {
	LastWatermark(ctx context.Context) (time.Time, bool, error)
	Stage(ctx context.Context, rows []models.TriggerRunRow) (int64, error)
	Merge(ctx context.Context) (int64, error)
}

// CatalogStore persists the full-refresh factory listings.
type CatalogStore interface {
	ReplaceResources(ctx context.Context, table string, rows []models.FactoryResourceRow) (int64, error)
	ReplaceTriggers(ctx context.Context, rows []models.TriggerRow) (int64, error)
}

// Lock is a held extractor lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out per-extractor locks so concurrent invocations cannot fight
// over the same staging table.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Options tunes the extraction defaults.
type Options struct {
	DefaultAPILimit   int           // backlog size for run queries
	DefaultListLimit  int           // page cap for full-refresh listings
	DefaultOffsetDays int           // watermark lookback
	Actor             string        // audit identity when the request carries none
	LockTTL           time.Duration // extractor lock lifetime
}

func (o *Options) applyDefaults() {
	if o.DefaultAPILimit <= 0 {
		o.DefaultAPILimit = 999
	}
	if o.DefaultListLimit <= 0 {
		o.DefaultListLimit = 500
	}
	if o.DefaultOffsetDays < 0 {
		o.DefaultOffsetDays = 1
	}
	if o.Actor == "" {
		o.Actor = "fern"
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 15 * time.Minute
	}
}

// Service dispatches extract requests to the matching extractor.
type Service struct {
	activityRuns ActivityRunStore
	pipelineRuns PipelineRunStore
	triggerRuns  TriggerRunStore
	catalog      CatalogStore
	client       datafactory.Client
	locker       Locker // optional
	emitter      *events.Emitter
	logger       ectologger.Logger
	opts         Options
	now          func() time.Time
}

// NewService creates the extract service. locker and emitter may be nil when
// Redis or Kafka are not configured.
func NewService(
	activityRuns ActivityRunStore,
	pipelineRuns PipelineRunStore,
	triggerRuns TriggerRunStore,
	catalog CatalogStore,
	client datafactory.Client,
	locker Locker,
	emitter *events.Emitter,
	logger ectologger.Logger,
	opts Options,
) *Service {
	opts.applyDefaults()
	return &Service{
		activityRuns: activityRuns,
		pipelineRuns: pipelineRuns,
		triggerRuns:  triggerRuns,
		catalog:      catalog,
		client:       client,
		locker:       locker,
		emitter:      emitter,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
	}
}

// Run executes the extractor named by the request and returns the uniform
// result envelope. Unknown api names return the Exception envelope; the HTTP
// layer rejects them with 400 before reaching here.
func (s *Service) Run(ctx context.Context, req models.ExtractRequest) models.ExtractResult {
	ctx, span := tracing.StartSpan(ctx, "extract.Service.Run")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"api_name":     req.APIName,
		"factory_name": req.FactoryName,
	})

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, req.APIName, s.opts.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotAcquired) {
				log.Warn("Extraction already in progress")
				return models.ExceptionResult(req.APIName, fmt.Errorf("extraction already in progress for %s", req.APIName))
			}
			log.WithError(err).Error("Failed to acquire extractor lock")
			return models.ExceptionResult(req.APIName, err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				log.WithError(err).Warn("Failed to release extractor lock")
			}
		}()
	}

	stamp := models.Stamp{Time: s.now().UTC(), Actor: s.actor(ctx)}

	var result models.ExtractResult
	switch req.APIName {
	case models.APIGetActivityRuns:
		result = s.getActivityRuns(ctx, req, stamp)
	case models.APIGetPipelineRuns:
		result = s.getPipelineRuns(ctx, req, stamp)
	case models.APIGetTriggerRuns:
		result = s.getTriggerRuns(ctx, req, stamp)
	case models.APIGetPipelines, models.APIGetDatasets, models.APIGetLinkedServices:
		result = s.getResources(ctx, req, stamp)
	case models.APIGetTriggers:
		result = s.getTriggers(ctx, req, stamp)
	default:
		return models.ExceptionResult(req.APIName, fmt.Errorf("unknown api_name %q, valid names: %v", req.APIName, models.AvailableAPIs()))
	}

	s.emit(ctx, req, result)
	return result
}

func (s *Service) actor(ctx context.Context) string {
	if actor := appctx.GetActor(ctx); actor != "" {
		return actor
	}
	return s.opts.Actor
}

func (s *Service) emit(ctx context.Context, req models.ExtractRequest, result models.ExtractResult) {
	if result.Status == models.StatusSuccess {
		var impacted int64
		if msg, ok := result.Message.(map[string]any); ok {
			if rows, ok := msg["impacted_rows"].(int64); ok {
				impacted = rows
			}
		}
		s.emitter.EmitCompleted(ctx, req.APIName, req.FactoryName, impacted)
		return
	}
	s.emitter.EmitFailed(ctx, req.APIName, req.FactoryName, fmt.Sprintf("%v", result.Message))
}

func (s *Service) apiLimit(req models.ExtractRequest) int {
	if req.APILimit != nil && *req.APILimit > 0 {
		return *req.APILimit
	}
	return s.opts.DefaultAPILimit
}

func (s *Service) listLimit(req models.ExtractRequest) int {
	if req.APILimit != nil && *req.APILimit > 0 {
		return *req.APILimit
	}
	return s.opts.DefaultListLimit
}

func (s *Service) offsetDays(req models.ExtractRequest) int {
	if req.WatermarkOffset != nil && *req.WatermarkOffset >= 0 {
		return *req.WatermarkOffset
	}
	return s.opts.DefaultOffsetDays
}
