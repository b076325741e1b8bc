package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coldchain-monitor/pipeline/internal/consumer"
	"coldchain-monitor/pipeline/internal/domain"
	"coldchain-monitor/pipeline/internal/metrics"
	"coldchain-monitor/pipeline/internal/queue"
)

type EventStore interface {
	InsertReading(ctx context.Context, r domain.Reading) error
	InsertAlert(ctx context.Context, a domain.Alert) error
	InsertCorrection(ctx context.Context, c domain.CorrectionRequest) error
}

type Notifier interface {
	Notify(ctx context.Context, payload []byte) error
}

// Dispatcher executes an evaluation event's action list, in order,
// against the stores. All writes are append-only inserts, so a
// redelivered event produces duplicate rows rather than corrupt state.
type Dispatcher struct {
	store    EventStore
	notifier Notifier
	log      *zap.Logger
}

func NewDispatcher(store EventStore, notifier Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, notifier: notifier, log: log}
}

// Handle implements consumer.Handler for outcome deliveries.
func (d *Dispatcher) Handle(ctx context.Context, del queue.Delivery) error {
	var event domain.EvaluationEvent
	if err := json.Unmarshal(del.Body, &event); err != nil {
		return fmt.Errorf("%w: decode event: %v", consumer.ErrMalformed, err)
	}
	// The classification->actions mapping is total, so an empty action
	// list can only mean a corrupt event.
	if len(event.Actions) == 0 {
		return fmt.Errorf("%w: event %s has no actions", consumer.ErrMalformed, event.ID)
	}
	return d.Dispatch(ctx, event)
}

// Dispatch runs every action of the event. One alert row is written per
// event no matter how many of its actions reference the alert record;
// notification failures are logged and swallowed. Any store failure
// aborts so the whole event stays unacked and is redelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.EvaluationEvent) error {
	alertWritten := false

	for _, action := range event.Actions {
		switch action {
		case domain.ActionRecord:
			if err := d.store.InsertReading(ctx, event.Reading); err != nil {
				return err
			}

		case domain.ActionNotifyWarning, domain.ActionNotifyCritical:
			if !alertWritten {
				if err := d.store.InsertAlert(ctx, alertFor(event, action)); err != nil {
					return err
				}
				alertWritten = true
			}
			d.notify(ctx, event)

		case domain.ActionRequestAdjustment:
			if !alertWritten {
				if err := d.store.InsertAlert(ctx, alertFor(event, action)); err != nil {
					return err
				}
				alertWritten = true
			}
			correction := domain.CorrectionRequest{
				EntityID:     event.Reading.EntityID,
				ActionType:   action,
				CurrentValue: event.Reading.Value,
				TargetValue:  event.Thresholds.Target,
				Status:       domain.CorrectionPending,
				CreatedAt:    time.Now().UTC(),
			}
			if err := d.store.InsertCorrection(ctx, correction); err != nil {
				return err
			}

		case domain.ActionRecordTrend:
			if !alertWritten {
				if err := d.store.InsertAlert(ctx, alertFor(event, action)); err != nil {
					return err
				}
				alertWritten = true
			}

		default:
			return fmt.Errorf("%w: event %s has unknown action %q", consumer.ErrMalformed, event.ID, action)
		}
	}

	metrics.EventsDispatched.Add(1)
	return nil
}

// alertFor builds the single alert row for an event. Trend alerts carry
// no threshold; severity alerts carry the threshold they crossed.
func alertFor(event domain.EvaluationEvent, action domain.Action) domain.Alert {
	var thresholdUsed *float64
	switch event.Classification {
	case domain.ClassCritical:
		t := event.Thresholds.Critical
		thresholdUsed = &t
	case domain.ClassWarning:
		t := event.Thresholds.Warning
		thresholdUsed = &t
	}

	return domain.Alert{
		EntityID:       event.Reading.EntityID,
		Value:          event.Reading.Value,
		ThresholdUsed:  thresholdUsed,
		Classification: event.Classification,
		ActionTaken:    action,
		Message:        event.Message,
		CreatedAt:      time.Now().UTC(),
	}
}

// notify is best-effort: a delivery failure never blocks persistence or
// acknowledgment.
func (d *Dispatcher) notify(ctx context.Context, event domain.EvaluationEvent) {
	payload, err := json.Marshal(map[string]interface{}{
		"entity_id":      event.Reading.EntityID,
		"value":          event.Reading.Value,
		"classification": string(event.Classification),
		"message":        event.Message,
		"produced_at":    event.ProducedAt.Unix(),
	})
	if err != nil {
		metrics.NotifyFailures.Add(1)
		d.log.Warn("notification encode failed", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	if err := d.notifier.Notify(ctx, payload); err != nil {
		metrics.NotifyFailures.Add(1)
		d.log.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("entity_id", event.Reading.EntityID),
			zap.Error(err))
	}
}
