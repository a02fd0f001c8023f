// Package internal provides the App struct that wires the components of the
// TinkyBink corpus engine together and initializes the CLI layer.
package internal

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valter-silva-au/tinkybink/internal/catalog"
	"github.com/valter-silva-au/tinkybink/internal/cli"
	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/observability"
	"github.com/valter-silva-au/tinkybink/internal/storage"
	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// HomeEnv overrides the base path used to resolve relative paths.
const HomeEnv = "TINKYBINK_HOME"

// App holds the service dependencies of one command invocation.
type App struct {
	BasePath string
	Logger   *zap.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Catalog and artifact storage
	Catalog *catalog.Registry
	Store   core.ArtifactStore

	// Observability
	EventLog    observability.EventLog
	Events      core.EventLogger
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
}

// NewApp loads configuration from basePath (or configFile when set), loads
// the catalog and opens the event log. Relative output, data and event log
// paths are resolved against basePath.
func NewApp(basePath, configFile string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{BasePath: basePath, Logger: logger}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath, configFile)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.Build.OutputDir = app.resolve(cfg.Build.OutputDir)
	cfg.Catalog.DataDir = app.resolve(cfg.Catalog.DataDir)
	cfg.Observability.EventLog = app.resolve(cfg.Observability.EventLog)
	app.Config = cfg

	// --- Catalog ---
	app.Catalog, err = catalog.Load(cfg.Catalog.DataDir)
	if err != nil {
		return nil, core.ConfigError("loading catalog", err)
	}
	logger.Debug("catalog loaded", zap.Int("categories", app.Catalog.Len()), zap.String("data_dir", cfg.Catalog.DataDir))

	// --- Storage ---
	app.Store = artifactStore{}

	// --- Observability ---
	if path := cfg.Observability.EventLog; path != "" {
		app.EventLog, err = observability.NewJSONLEventLog(path)
		if err != nil {
			// Non-fatal: builds run without an event log.
			logger.Warn("event log disabled", zap.String("path", path), zap.Error(err))
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		alerts := cfg.Observability.Alerts
		thresholds := observability.AlertThresholds{
			MaxRejectionRatio:  alerts.MaxRejectionRatio,
			MaxEmptyCategories: alerts.MaxEmptyCategories,
			StaleDays:          alerts.StaleDays,
		}
		app.Events = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Wire CLI ---
	cli.BasePath = basePath
	cli.Config = app.Config
	cli.ConfigMgr = app.ConfigMgr
	cli.Catalog = app.Catalog
	cli.Store = app.Store
	cli.Logger = logger
	cli.EventLog = app.EventLog
	cli.Events = app.Events
	cli.MetricsCalc = app.MetricsCalc
	cli.AlertEngine = app.AlertEngine

	return app, nil
}

func (a *App) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.BasePath, path)
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// Install registers the CLI setup hooks: each command that needs services
// builds an App rooted at basePath, and Execute closes it afterwards.
func Install(basePath string) {
	var current *App
	cli.Setup = func(configFile string, logger *zap.Logger) error {
		app, err := NewApp(basePath, configFile, logger)
		if err != nil {
			return err
		}
		current = app
		return nil
	}
	cli.Teardown = func() error {
		if current == nil {
			return nil
		}
		err := current.Close()
		current = nil
		return err
	}
}

// ResolveBasePath returns $TINKYBINK_HOME when set, else the current directory.
func ResolveBasePath() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// --- Adapters ---

// artifactStore adapts storage.ArtifactSet to core.ArtifactStore. A
// transaction holds the output directory lock until it commits or rolls back.
type artifactStore struct{}

func (artifactStore) Begin(dir string) (core.ArtifactTxn, error) {
	unlock, err := storage.LockDir(dir)
	if err != nil {
		return nil, err
	}
	set, err := storage.NewArtifactSet(dir)
	if err != nil {
		_ = unlock()
		return nil, err
	}
	return &artifactTxn{set: set, unlock: unlock}, nil
}

// artifactTxn encodes each artifact into a staged file of the set.
type artifactTxn struct {
	set    *storage.ArtifactSet
	unlock func() error
}

func (t *artifactTxn) release(err error) error {
	if t.unlock == nil {
		return err
	}
	uerr := t.unlock()
	t.unlock = nil
	return errors.Join(err, uerr)
}

func (t *artifactTxn) WriteRecords(name string, records []models.Record) error {
	return t.set.Stage(name, func(w io.Writer) error {
		return storage.WriteRecords(w, records)
	})
}

func (t *artifactTxn) WriteTreeIndex(name string, idx *models.TreeIndex) error {
	return t.set.Stage(name, func(w io.Writer) error {
		return storage.WriteTreeIndex(w, idx)
	})
}

func (t *artifactTxn) WriteProfile(name string, profile string) error {
	if profile == "" {
		return errors.New("empty profile")
	}
	return t.set.Stage(name, func(w io.Writer) error {
		_, err := io.WriteString(w, profile)
		return err
	})
}

func (t *artifactTxn) WriteSnapshot(name string, buildID string, records []models.Record) error {
	return t.set.Stage(name, func(w io.Writer) error {
		return storage.WriteSnapshot(w, buildID, records)
	})
}

func (t *artifactTxn) Commit() ([]string, error) {
	written, err := t.set.Commit()
	if err := t.release(err); err != nil {
		return nil, err
	}
	return written, nil
}

func (t *artifactTxn) Rollback() error { return t.release(t.set.Rollback()) }
