package domain

import (
	"errors"
	"fmt"
	"time"
)

// Reading is one temperature sample reported by a unit's sensor.
// Immutable once accepted by the gateway; the queue may deliver it
// more than once.
type Reading struct {
	EntityID   string    `json:"entity_id"`
	SensorID   string    `json:"sensor_id"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

func (r Reading) Validate() error {
	if r.EntityID == "" {
		return errors.New("reading: empty entity_id")
	}
	if r.SensorID == "" {
		return errors.New("reading: empty sensor_id")
	}
	if r.ObservedAt.IsZero() {
		return errors.New("reading: missing observed_at")
	}
	return nil
}

// Thresholds are the per-entity evaluation bounds. Warning and Critical
// are upper bounds (a reefer getting warmer is the failure direction);
// Target is where a correction should steer the unit back to.
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
	Target   float64 `json:"target"`
}

type Classification string

const (
	ClassNormal       Classification = "NORMAL"
	ClassWarning      Classification = "WARNING"
	ClassCritical     Classification = "CRITICAL"
	ClassTrendAnomaly Classification = "TREND_ANOMALY"
)

type Action string

const (
	ActionRecord            Action = "RECORD"
	ActionNotifyWarning     Action = "NOTIFY_WARNING"
	ActionNotifyCritical    Action = "NOTIFY_CRITICAL"
	ActionRequestAdjustment Action = "REQUEST_ADJUSTMENT"
	ActionRecordTrend       Action = "RECORD_TREND"
)

// Classify maps a value onto a severity. Ties go to the lower severity:
// a value exactly at a threshold does not cross it.
func Classify(value float64, t Thresholds) Classification {
	switch {
	case value > t.Critical:
		return ClassCritical
	case value > t.Warning:
		return ClassWarning
	default:
		return ClassNormal
	}
}

// ActionsFor returns the ordered action list for a classification.
// The mapping is total: every classification yields a non-empty list.
// Callers must not mutate the returned slice.
func ActionsFor(c Classification) []Action {
	switch c {
	case ClassCritical:
		return []Action{ActionRecord, ActionRequestAdjustment, ActionNotifyCritical}
	case ClassWarning:
		return []Action{ActionRecord, ActionNotifyWarning}
	case ClassTrendAnomaly:
		return []Action{ActionRecordTrend}
	default:
		return []Action{ActionRecord}
	}
}

// EvaluationEvent pairs a Reading with its evaluation outcome. Exactly one
// ordinary event exists per processed Reading, plus at most one synthetic
// TREND_ANOMALY event depending on history state at evaluation time.
type EvaluationEvent struct {
	ID             string         `json:"id"`
	Reading        Reading        `json:"reading"`
	Classification Classification `json:"classification"`
	Thresholds     Thresholds     `json:"thresholds"`
	Actions        []Action       `json:"actions"`
	Message        string         `json:"message"`
	ProducedAt     time.Time      `json:"produced_at"`
}

// ClassificationMessage renders the operator-facing summary for an
// ordinary evaluation event.
func ClassificationMessage(c Classification, value float64, t Thresholds) string {
	switch c {
	case ClassCritical:
		return fmt.Sprintf("value %.2f above critical threshold %.2f", value, t.Critical)
	case ClassWarning:
		return fmt.Sprintf("value %.2f above warning threshold %.2f", value, t.Warning)
	default:
		return fmt.Sprintf("value %.2f within thresholds", value)
	}
}

// Alert is the persisted record of a WARNING/CRITICAL/TREND_ANOMALY hit.
// ThresholdUsed is nil for trend alerts, which have no single threshold.
type Alert struct {
	EntityID       string
	Value          float64
	ThresholdUsed  *float64
	Classification Classification
	ActionTaken    Action
	Message        string
	CreatedAt      time.Time
}

type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "PENDING"
	CorrectionExecuted CorrectionStatus = "EXECUTED"
)

// CorrectionRequest asks the unit's controller to steer the current value
// back toward the target. The pipeline only ever creates PENDING rows;
// execution is someone else's job.
type CorrectionRequest struct {
	EntityID     string
	ActionType   Action
	CurrentValue float64
	TargetValue  float64
	Status       CorrectionStatus
	CreatedAt    time.Time
}
