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

type fakeResolver struct {
	thresholds domain.Thresholds
	err        error
}

func (f *fakeResolver) ResolveThresholds(ctx context.Context, entityID string) (domain.Thresholds, error) {
	return f.thresholds, f.err
}

type fakeHistory struct {
	values []float64
	err    error
}

func (f *fakeHistory) RecentValues(ctx context.Context, entityID string, window time.Duration, max int) ([]float64, error) {
	return f.values, f.err
}

type fakeSink struct {
	published [][]byte
	failAfter int // fail publishes once this many succeeded; -1 never
}

func (f *fakeSink) Publish(ctx context.Context, body []byte) error {
	if f.failAfter >= 0 && len(f.published) >= f.failAfter {
		return errors.New("outcome queue unavailable")
	}
	f.published = append(f.published, body)
	return nil
}

func (f *fakeSink) events(t *testing.T) []domain.EvaluationEvent {
	t.Helper()
	events := make([]domain.EvaluationEvent, len(f.published))
	for i, body := range f.published {
		require.NoError(t, json.Unmarshal(body, &events[i]))
	}
	return events
}

var testThresholds = domain.Thresholds{Warning: -10, Critical: -5, Target: -18}

func testReading(value float64) domain.Reading {
	return domain.Reading{
		EntityID:   "ship_1",
		SensorID:   "reefer_temp_1",
		Value:      value,
		ObservedAt: time.Now().UTC(),
	}
}

func newTestEvaluator(resolver *fakeResolver, history *fakeHistory, sink *fakeSink) *Evaluator {
	return NewEvaluator(resolver, history, sink, domain.DefaultTrendConfig, zap.NewNop())
}

func TestEvaluateCriticalReading(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{},
		sink,
	)

	require.NoError(t, e.Evaluate(context.Background(), testReading(-1)))

	events := sink.events(t)
	require.Len(t, events, 1)

	event := events[0]
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, domain.ClassCritical, event.Classification)
	assert.Equal(t, []domain.Action{
		domain.ActionRecord,
		domain.ActionRequestAdjustment,
		domain.ActionNotifyCritical,
	}, event.Actions)
	assert.Equal(t, testThresholds, event.Thresholds)
	assert.Equal(t, "ship_1", event.Reading.EntityID)
	assert.Contains(t, event.Message, "critical")
	assert.False(t, event.ProducedAt.IsZero())
}

func TestEvaluateNormalReading(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{},
		sink,
	)

	require.NoError(t, e.Evaluate(context.Background(), testReading(-19)))

	events := sink.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ClassNormal, events[0].Classification)
	assert.Equal(t, []domain.Action{domain.ActionRecord}, events[0].Actions)
}

func TestEvaluateEmitsTrendEvent(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{values: []float64{-3, -4, -6, -9}},
		sink,
	)

	require.NoError(t, e.Evaluate(context.Background(), testReading(-3)))

	events := sink.events(t)
	require.Len(t, events, 2, "one ordinary event plus one trend event")

	trend := events[1]
	assert.Equal(t, domain.ClassTrendAnomaly, trend.Classification)
	assert.Equal(t, []domain.Action{domain.ActionRecordTrend}, trend.Actions)
	assert.Equal(t, "ship_1", trend.Reading.EntityID)
	assert.Contains(t, trend.Message, "rising trend")
	assert.NotEqual(t, events[0].ID, trend.ID)
}

func TestEvaluateNoTrendWithShortHistory(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{values: []float64{-3, -9}},
		sink,
	)

	require.NoError(t, e.Evaluate(context.Background(), testReading(-3)))
	assert.Len(t, sink.events(t), 1)
}

func TestEvaluateThresholdLookupFailureFailsWholeReading(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{err: errors.New("redis timeout")},
		&fakeHistory{},
		sink,
	)

	require.Error(t, e.Evaluate(context.Background(), testReading(-1)))
	assert.Empty(t, sink.published, "nothing published on resolve failure")
}

func TestEvaluateHistoryFailureAfterPublishIsNotRetracted(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{err: errors.New("db timeout")},
		sink,
	)

	// The reading fails overall (token withheld, redelivery), but the
	// already-published ordinary event stays out.
	require.Error(t, e.Evaluate(context.Background(), testReading(-1)))
	assert.Len(t, sink.published, 1)
}

func TestEvaluatePublishFailure(t *testing.T) {
	sink := &fakeSink{failAfter: 0}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{},
		sink,
	)

	require.Error(t, e.Evaluate(context.Background(), testReading(-1)))
}

func TestHandleMalformedBody(t *testing.T) {
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{},
		&fakeSink{failAfter: -1},
	)

	err := e.Handle(context.Background(), queue.Delivery{Token: "1-0", Body: []byte("not json")})
	assert.ErrorIs(t, err, consumer.ErrMalformed)

	// Valid JSON that fails reading validation is malformed too.
	err = e.Handle(context.Background(), queue.Delivery{Token: "2-0", Body: []byte(`{"entity_id":""}`)})
	assert.ErrorIs(t, err, consumer.ErrMalformed)
}

func TestHandleValidBody(t *testing.T) {
	sink := &fakeSink{failAfter: -1}
	e := newTestEvaluator(
		&fakeResolver{thresholds: testThresholds},
		&fakeHistory{},
		sink,
	)

	body, err := json.Marshal(testReading(-7))
	require.NoError(t, err)

	require.NoError(t, e.Handle(context.Background(), queue.Delivery{Token: "1-0", Body: body}))

	events := sink.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ClassWarning, events[0].Classification)
}
