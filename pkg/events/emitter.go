// Package events handles event emission for extraction outcomes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes extraction lifecycle events. A nil Emitter (brokers not
// configured) drops events silently.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitCompleted emits an extraction.completed event. Event failures are
// logged, never propagated; the warehouse load already succeeded.
func (e *Emitter) EmitCompleted(ctx context.Context, apiName, factoryName string, impactedRows int64) {
	if e == nil || e.producer == nil {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCompleted")
	defer span.End()

	event := &kafka.ExtractionEvent{
		EventType:    "extraction.completed",
		APIName:      apiName,
		FactoryName:  factoryName,
		ImpactedRows: impactedRows,
	}

	if err := e.producer.PublishExtractionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit extraction.completed event")
	}
}

// EmitFailed emits an extraction.failed event.
func (e *Emitter) EmitFailed(ctx context.Context, apiName, factoryName, message string) {
	if e == nil || e.producer == nil {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitFailed")
	defer span.End()

	event := &kafka.ExtractionEvent{
		EventType:   "extraction.failed",
		APIName:     apiName,
		FactoryName: factoryName,
		Message:     message,
	}

	if err := e.producer.PublishExtractionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit extraction.failed event")
	}
}
