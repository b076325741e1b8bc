package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coldchain-monitor/pipeline/internal/consumer"
	"coldchain-monitor/pipeline/internal/domain"
	"coldchain-monitor/pipeline/internal/metrics"
	"coldchain-monitor/pipeline/internal/queue"
)

type ThresholdResolver interface {
	ResolveThresholds(ctx context.Context, entityID string) (domain.Thresholds, error)
}

type HistoryReader interface {
	RecentValues(ctx context.Context, entityID string, window time.Duration, max int) ([]float64, error)
}

// Evaluator turns one Reading into one ordinary evaluation event and,
// when the recent history shows a rising trend, one synthetic trend event.
// Publishing to the outcome queue is its only externally visible effect.
type Evaluator struct {
	thresholds ThresholdResolver
	history    HistoryReader
	outcomes   queue.Sink
	trend      domain.TrendConfig
	log        *zap.Logger
}

func NewEvaluator(
	thresholds ThresholdResolver,
	history HistoryReader,
	outcomes queue.Sink,
	trend domain.TrendConfig,
	log *zap.Logger,
) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		history:    history,
		outcomes:   outcomes,
		trend:      trend,
		log:        log,
	}
}

// Handle implements consumer.Handler for intake deliveries.
func (e *Evaluator) Handle(ctx context.Context, d queue.Delivery) error {
	var reading domain.Reading
	if err := json.Unmarshal(d.Body, &reading); err != nil {
		return fmt.Errorf("%w: decode reading: %v", consumer.ErrMalformed, err)
	}
	if err := reading.Validate(); err != nil {
		return fmt.Errorf("%w: %v", consumer.ErrMalformed, err)
	}
	return e.Evaluate(ctx, reading)
}

// Evaluate classifies a reading and publishes its events. Any transient
// lookup or publish failure fails the whole reading so its token is
// withheld and the queue redelivers it. If the ordinary event went out
// before a later step failed, it is not retracted; redelivery then
// publishes it again, which downstream tolerates.
func (e *Evaluator) Evaluate(ctx context.Context, r domain.Reading) error {
	thresholds, err := e.thresholds.ResolveThresholds(ctx, r.EntityID)
	if err != nil {
		return err
	}

	classification := domain.Classify(r.Value, thresholds)
	event := domain.EvaluationEvent{
		ID:             uuid.NewString(),
		Reading:        r,
		Classification: classification,
		Thresholds:     thresholds,
		Actions:        domain.ActionsFor(classification),
		Message:        domain.ClassificationMessage(classification, r.Value, thresholds),
		ProducedAt:     time.Now().UTC(),
	}

	if err := e.publish(ctx, event); err != nil {
		return err
	}
	metrics.ReadingsEvaluated.Add(1)

	trendEvent, found, err := e.detectTrend(ctx, r, thresholds)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := e.publish(ctx, trendEvent); err != nil {
		return err
	}
	metrics.TrendsDetected.Add(1)
	e.log.Info("trend anomaly detected",
		zap.String("entity_id", r.EntityID),
		zap.String("detail", trendEvent.Message))
	return nil
}

// detectTrend queries the recent history window and runs the rising-trend
// heuristic over it. The outcome depends on history state at evaluation
// time, not on the reading alone.
func (e *Evaluator) detectTrend(ctx context.Context, r domain.Reading, t domain.Thresholds) (domain.EvaluationEvent, bool, error) {
	window := time.Duration(e.trend.WindowMinutes) * time.Minute
	samples, err := e.history.RecentValues(ctx, r.EntityID, window, e.trend.MaxSamples)
	if err != nil {
		return domain.EvaluationEvent{}, false, err
	}

	result, found := domain.AnalyzeTrend(samples, e.trend)
	if !found {
		return domain.EvaluationEvent{}, false, nil
	}

	return domain.EvaluationEvent{
		ID:             uuid.NewString(),
		Reading:        r,
		Classification: domain.ClassTrendAnomaly,
		Thresholds:     t,
		Actions:        domain.ActionsFor(domain.ClassTrendAnomaly),
		Message:        result.Message(),
		ProducedAt:     time.Now().UTC(),
	}, true, nil
}

func (e *Evaluator) publish(ctx context.Context, event domain.EvaluationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return e.outcomes.Publish(ctx, body)
}
