package observability

import (
	"fmt"
	"time"
)

// Metrics aggregates the build events written since a point in time.
type Metrics struct {
	BuildsStarted     int            `json:"builds_started"`
	BuildsCompleted   int            `json:"builds_completed"`
	BuildsFailed      int            `json:"builds_failed"`
	RecordsAccepted   int            `json:"records_accepted"`
	RejectedInvalid   int            `json:"rejected_invalid"`
	RejectedDuplicate int            `json:"rejected_duplicate"`
	IngestedRecords   int            `json:"ingested_records"`
	EmptyCategories   int            `json:"empty_categories"`
	FailuresByStage   map[string]int `json:"failures_by_stage"`
	LastBuildID       string         `json:"last_build_id,omitempty"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// RejectionRatio is rejected / (accepted + rejected) over completed builds.
func (m *Metrics) RejectionRatio() float64 {
	rejected := m.RejectedInvalid + m.RejectedDuplicate
	total := m.RecordsAccepted + rejected
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{FailuresByStage: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "build.started":
			m.BuildsStarted++
		case "build.completed":
			m.BuildsCompleted++
			m.RecordsAccepted += intField(event.Data, "accepted")
			m.RejectedInvalid += intField(event.Data, "rejected_invalid")
			m.RejectedDuplicate += intField(event.Data, "rejected_duplicate")
			if id, ok := event.Data["build_id"].(string); ok {
				m.LastBuildID = id
			}
		case "build.failed":
			m.BuildsFailed++
			if stage, ok := event.Data["stage"].(string); ok {
				m.FailuresByStage[stage]++
			}
		case "build.category_empty":
			m.EmptyCategories++
		case "ingest.completed":
			m.IngestedRecords += intField(event.Data, "accepted")
		}
	}
	return m, nil
}

// intField reads a count that may have gone through a JSON round trip.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
