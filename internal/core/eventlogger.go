package core

import (
	"context"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Build event types written to the event log.
const (
	EventBuildStarted       = "build.started"
	EventBuildStage         = "build.stage"
	EventBuildCategoryEmpty = "build.category_empty"
	EventBuildCompleted     = "build.completed"
	EventBuildFailed        = "build.failed"
)

// ScenarioSource is the catalog as seen by the pipeline.
type ScenarioSource interface {
	Tags() []string
	Info(tag string) (models.CategoryInfo, bool)
	Generate(ctx context.Context, tag string, seed uint64) ([]models.Scenario, error)
}

// ArtifactStore opens a staged artifact set in an output directory.
type ArtifactStore interface {
	Begin(dir string) (ArtifactTxn, error)
}

// ArtifactTxn stages artifacts and publishes them together. After a failed
// Commit or a Rollback no staged file remains on disk.
type ArtifactTxn interface {
	WriteRecords(name string, records []models.Record) error
	WriteTreeIndex(name string, idx *models.TreeIndex) error
	WriteProfile(name string, profile string) error
	WriteSnapshot(name string, buildID string, records []models.Record) error
	Commit() ([]string, error)
	Rollback() error
}
