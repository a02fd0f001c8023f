package cli

import (
	"errors"

	"go.uber.org/zap"

	"github.com/valter-silva-au/tinkybink/internal/catalog"
	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/observability"
	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Service instances, set by the application in Setup.
var (
	BasePath  string
	Config    *models.Config
	ConfigMgr core.ConfigurationManager
	Catalog   *catalog.Registry
	Store     core.ArtifactStore
	Logger    = zap.NewNop()
)

// Observability service instances. Any of them may be nil when the event
// log could not be opened.
var (
	EventLog    observability.EventLog
	Events      core.EventLogger
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
)

// Setup loads configuration and wires the services before a command runs.
// Teardown releases them after Execute returns.
var (
	Setup    func(configFile string, logger *zap.Logger) error
	Teardown func() error
)

var errNotInitialized = errors.New("application not initialized")

func requireApp() error {
	if Config == nil || Catalog == nil {
		return errNotInitialized
	}
	return nil
}
