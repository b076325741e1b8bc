package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coldchain-monitor/pipeline/internal/consumer"
	"coldchain-monitor/pipeline/internal/domain"
	"coldchain-monitor/pipeline/internal/queue"
)

type fakeEventStore struct {
	readings    []domain.Reading
	alerts      []domain.Alert
	corrections []domain.CorrectionRequest

	readingErr    error
	alertErr      error
	correctionErr error
}

func (f *fakeEventStore) InsertReading(ctx context.Context, r domain.Reading) error {
	if f.readingErr != nil {
		return f.readingErr
	}
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeEventStore) InsertAlert(ctx context.Context, a domain.Alert) error {
	if f.alertErr != nil {
		return f.alertErr
	}
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeEventStore) InsertCorrection(ctx context.Context, c domain.CorrectionRequest) error {
	if f.correctionErr != nil {
		return f.correctionErr
	}
	f.corrections = append(f.corrections, c)
	return nil
}

type fakeNotifier struct {
	payloads [][]byte
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func eventFor(value float64, classification domain.Classification) domain.EvaluationEvent {
	return domain.EvaluationEvent{
		ID:             "evt-1",
		Reading:        testReading(value),
		Classification: classification,
		Thresholds:     testThresholds,
		Actions:        domain.ActionsFor(classification),
		Message:        domain.ClassificationMessage(classification, value, testThresholds),
		ProducedAt:     time.Now().UTC(),
	}
}

func TestDispatchCriticalEvent(t *testing.T) {
	store := &fakeEventStore{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), eventFor(-1, domain.ClassCritical)))

	// One history row, one alert row, one pending correction, one
	// attempted notification.
	require.Len(t, store.readings, 1)
	assert.Equal(t, "ship_1", store.readings[0].EntityID)

	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	assert.Equal(t, domain.ClassCritical, alert.Classification)
	require.NotNil(t, alert.ThresholdUsed)
	assert.InDelta(t, -5, *alert.ThresholdUsed, 1e-9)

	require.Len(t, store.corrections, 1)
	correction := store.corrections[0]
	assert.Equal(t, domain.CorrectionPending, correction.Status)
	assert.InDelta(t, -1, correction.CurrentValue, 1e-9)
	assert.InDelta(t, -18, correction.TargetValue, 1e-9)

	assert.Len(t, notifier.payloads, 1)
}

func TestDispatchNormalEvent(t *testing.T) {
	store := &fakeEventStore{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), eventFor(-19, domain.ClassNormal)))

	assert.Len(t, store.readings, 1)
	assert.Empty(t, store.alerts)
	assert.Empty(t, store.corrections)
	assert.Empty(t, notifier.payloads)
}

func TestDispatchWarningEvent(t *testing.T) {
	store := &fakeEventStore{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), eventFor(-7, domain.ClassWarning)))

	assert.Len(t, store.readings, 1)
	require.Len(t, store.alerts, 1)
	require.NotNil(t, store.alerts[0].ThresholdUsed)
	assert.InDelta(t, -10, *store.alerts[0].ThresholdUsed, 1e-9)
	assert.Empty(t, store.corrections)
	assert.Len(t, notifier.payloads, 1)
}

func TestDispatchTrendEvent(t *testing.T) {
	store := &fakeEventStore{}
	notifier := &fakeNotifier{}
	d := NewDispatcher(store, notifier, zap.NewNop())

	event := eventFor(-3, domain.ClassTrendAnomaly)
	event.Message = "rising trend: 3 rising steps over 4 samples"
	require.NoError(t, d.Dispatch(context.Background(), event))

	assert.Empty(t, store.readings)
	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	assert.Equal(t, domain.ClassTrendAnomaly, alert.Classification)
	assert.Nil(t, alert.ThresholdUsed, "trend alerts cross no single threshold")
	assert.Empty(t, store.corrections)
	assert.Empty(t, notifier.payloads)
}

func TestDispatchDuplicateDeliveryAppendsTwice(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDispatcher(store, &fakeNotifier{}, zap.NewNop())

	event := eventFor(-19, domain.ClassNormal)
	require.NoError(t, d.Dispatch(context.Background(), event))
	require.NoError(t, d.Dispatch(context.Background(), event))

	// Duplicate rows, not an error: the accepted at-least-once trade-off.
	assert.Len(t, store.readings, 2)
}

func TestDispatchStoreFailureFailsWholeEvent(t *testing.T) {
	store := &fakeEventStore{alertErr: errors.New("db down")}
	d := NewDispatcher(store, &fakeNotifier{}, zap.NewNop())

	err := d.Dispatch(context.Background(), eventFor(-1, domain.ClassCritical))
	require.Error(t, err)
	assert.NotErrorIs(t, err, consumer.ErrMalformed, "transient failures must redeliver, not dead-letter")
	assert.Empty(t, store.corrections, "later actions must not run after a store failure")
}

func TestDispatchNotifyFailureIsSwallowed(t *testing.T) {
	store := &fakeEventStore{}
	notifier := &fakeNotifier{err: errors.New("channel down")}
	d := NewDispatcher(store, notifier, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), eventFor(-1, domain.ClassCritical)))
	assert.Len(t, store.alerts, 1)
	assert.Len(t, store.corrections, 1)
}

func TestHandleMalformedEvent(t *testing.T) {
	d := NewDispatcher(&fakeEventStore{}, &fakeNotifier{}, zap.NewNop())

	err := d.Handle(context.Background(), queue.Delivery{Token: "1-0", Body: []byte("{{")})
	assert.ErrorIs(t, err, consumer.ErrMalformed)

	empty, marshalErr := json.Marshal(domain.EvaluationEvent{ID: "evt-2"})
	require.NoError(t, marshalErr)
	err = d.Handle(context.Background(), queue.Delivery{Token: "2-0", Body: empty})
	assert.ErrorIs(t, err, consumer.ErrMalformed)
}

func TestHandleUnknownActionIsMalformed(t *testing.T) {
	d := NewDispatcher(&fakeEventStore{}, &fakeNotifier{}, zap.NewNop())

	event := eventFor(-19, domain.ClassNormal)
	event.Actions = []domain.Action{"SELF_DESTRUCT"}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	handleErr := d.Handle(context.Background(), queue.Delivery{Token: "1-0", Body: body})
	assert.ErrorIs(t, handleErr, consumer.ErrMalformed)
}

func TestHandleValidEvent(t *testing.T) {
	store := &fakeEventStore{}
	d := NewDispatcher(store, &fakeNotifier{}, zap.NewNop())

	body, err := json.Marshal(eventFor(-19, domain.ClassNormal))
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), queue.Delivery{Token: "1-0", Body: body}))
	assert.Len(t, store.readings, 1)
}
