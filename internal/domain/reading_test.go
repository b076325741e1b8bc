package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	thresholds := Thresholds{Warning: -10, Critical: -5, Target: -18}

	tests := []struct {
		name  string
		value float64
		want  Classification
	}{
		{"well below warning", -19, ClassNormal},
		{"exactly at warning stays normal", -10, ClassNormal},
		{"just above warning", -9.99, ClassWarning},
		{"between warning and critical", -7, ClassWarning},
		{"exactly at critical stays warning", -5, ClassWarning},
		{"just above critical", -4.99, ClassCritical},
		{"far above critical", -1, ClassCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, thresholds))
		})
	}
}

func TestActionsFor(t *testing.T) {
	tests := []struct {
		classification Classification
		want           []Action
	}{
		{ClassCritical, []Action{ActionRecord, ActionRequestAdjustment, ActionNotifyCritical}},
		{ClassWarning, []Action{ActionRecord, ActionNotifyWarning}},
		{ClassNormal, []Action{ActionRecord}},
		{ClassTrendAnomaly, []Action{ActionRecordTrend}},
	}

	for _, tt := range tests {
		t.Run(string(tt.classification), func(t *testing.T) {
			got := ActionsFor(tt.classification)
			require.NotEmpty(t, got, "mapping must be total")
			assert.Equal(t, tt.want, got)
			// Pure: repeated calls yield the same ordered list.
			assert.Equal(t, got, ActionsFor(tt.classification))
		})
	}
}

func TestActionsForUnknownClassificationStillRecords(t *testing.T) {
	got := ActionsFor(Classification("SOMETHING_ELSE"))
	assert.Equal(t, []Action{ActionRecord}, got)
}

func TestReadingValidate(t *testing.T) {
	valid := Reading{
		EntityID:   "ship_1",
		SensorID:   "reefer_temp_1",
		Value:      -18.5,
		ObservedAt: time.Now(),
	}
	require.NoError(t, valid.Validate())

	missingEntity := valid
	missingEntity.EntityID = ""
	assert.Error(t, missingEntity.Validate())

	missingSensor := valid
	missingSensor.SensorID = ""
	assert.Error(t, missingSensor.Validate())

	missingTime := valid
	missingTime.ObservedAt = time.Time{}
	assert.Error(t, missingTime.Validate())
}

func TestClassificationMessage(t *testing.T) {
	thresholds := Thresholds{Warning: -10, Critical: -5}

	assert.Contains(t, ClassificationMessage(ClassCritical, -1, thresholds), "critical threshold -5.00")
	assert.Contains(t, ClassificationMessage(ClassWarning, -7, thresholds), "warning threshold -10.00")
	assert.Contains(t, ClassificationMessage(ClassNormal, -19, thresholds), "within thresholds")
}
