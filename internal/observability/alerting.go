package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when build health alerts fire.
type AlertThresholds struct {
	MaxRejectionRatio  float64
	MaxEmptyCategories int
	StaleDays          int
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxRejectionRatio:  0.25,
		MaxEmptyCategories: 0,
		StaleDays:          7,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate looks at the most recent build outcome and returns the alerts it triggers.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	now := ae.now()

	var lastOutcome, lastCompleted *Event
	for i := range events {
		switch events[i].Type {
		case "build.completed":
			lastOutcome = &events[i]
			lastCompleted = &events[i]
		case "build.failed":
			lastOutcome = &events[i]
		}
	}

	var alerts []Alert
	if lastOutcome != nil && lastOutcome.Type == "build.failed" {
		stage, _ := lastOutcome.Data["stage"].(string)
		alerts = append(alerts, Alert{
			ID:          "last-build-failed",
			Condition:   "build_failed",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("the most recent build failed while %s", stage),
			TriggeredAt: now,
		})
	}

	if lastCompleted == nil {
		return alerts, nil
	}
	id, _ := lastCompleted.Data["build_id"].(string)

	accepted := intField(lastCompleted.Data, "accepted")
	rejected := intField(lastCompleted.Data, "rejected_invalid") + intField(lastCompleted.Data, "rejected_duplicate")
	if total := accepted + rejected; total > 0 {
		ratio := float64(rejected) / float64(total)
		if ratio > ae.thresholds.MaxRejectionRatio {
			alerts = append(alerts, Alert{
				ID:          "rejections-" + id,
				Condition:   "rejection_ratio_high",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("build %s rejected %.1f%% of scenarios, above %.1f%%", id, ratio*100, ae.thresholds.MaxRejectionRatio*100),
				TriggeredAt: now,
			})
		}
	}

	if empty := intField(lastCompleted.Data, "empty_categories"); empty > ae.thresholds.MaxEmptyCategories {
		alerts = append(alerts, Alert{
			ID:          "empty-" + id,
			Condition:   "empty_categories",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("build %s left %d categories without records", id, empty),
			TriggeredAt: now,
		})
	}

	if ae.thresholds.StaleDays > 0 {
		threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
		if now.Sub(lastCompleted.Time) > threshold {
			alerts = append(alerts, Alert{
				ID:          "stale-corpus",
				Condition:   "corpus_stale",
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("no build has completed in the last %d days", ae.thresholds.StaleDays),
				TriggeredAt: now,
			})
		}
	}
	return alerts, nil
}
