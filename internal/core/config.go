// Package core contains the corpus engine: tile parsing, record building,
// deduplication, conversation indexing, profile composition, configuration
// and the build pipeline that ties them together.
package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// ConfigFileName is the base name of the configuration file, without extension.
const ConfigFileName = "tinkybink"

// EnvPrefix prefixes environment overrides, e.g. TINKYBINK_BUILD_SEED.
const EnvPrefix = "TINKYBINK"

var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// ConfigurationManager loads and validates tinkybink.yaml.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager reads configuration with Viper, layering defaults,
// the YAML file and TINKYBINK_* environment variables.
type viperConfigManager struct {
	basePath   string
	configFile string
}

// NewConfigurationManager creates a ConfigurationManager. An explicit
// configFile is read as-is and must exist; otherwise tinkybink.yaml is looked
// up in basePath and defaults apply when it is absent.
func NewConfigurationManager(basePath, configFile string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath, configFile: configFile}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *models.Config {
	examples := make([]models.ProfileExample, len(DefaultProfileExamples))
	copy(examples, DefaultProfileExamples)
	return &models.Config{
		Build: models.BuildSettings{
			Seed:          7,
			OutputDir:     "dist",
			Workers:       4,
			SampleReasons: 10,
		},
		Artifacts: models.ArtifactNames{
			Records:  "tinkybink_records.jsonl",
			Trees:    "tinkybink_trees.json",
			Profile:  "Modelfile",
			Snapshot: "tinkybink_corpus.msgpack",
		},
		Tiles: models.TileSettings{MaxPhraseRunes: DefaultMaxPhraseRunes},
		Indexer: models.IndexerSettings{
			Patterns:      append([]string(nil), DefaultFollowUpPatterns...),
			QuestionMatch: true,
		},
		Profile: models.ProfileConfig{
			Base:          "llama3.2",
			Dialect:       models.DialectModelfile,
			Temperature:   0.2,
			TopP:          0.7,
			TopK:          20,
			RepeatPenalty: 1.1,
			NumPredict:    40,
			Stop:          []string{"Input:", "\n"},
			System:        DefaultSystemPrompt,
			Template:      DefaultProfileTemplate,
			Examples:      examples,
		},
		Observability: models.ObservabilitySettings{
			EventLog: ".tinkybink_events.jsonl",
			Alerts: models.AlertSettings{
				MaxRejectionRatio:  0.25,
				MaxEmptyCategories: 0,
				StaleDays:          7,
			},
		},
	}
}

func setDefaults(v *viper.Viper, cfg *models.Config) {
	v.SetDefault("build.seed", cfg.Build.Seed)
	v.SetDefault("build.output_dir", cfg.Build.OutputDir)
	v.SetDefault("build.workers", cfg.Build.Workers)
	v.SetDefault("build.categories", []string{})
	v.SetDefault("build.sample_reasons", cfg.Build.SampleReasons)
	v.SetDefault("build.snapshot", cfg.Build.Snapshot)
	v.SetDefault("catalog.data_dir", cfg.Catalog.DataDir)
	v.SetDefault("artifacts.records", cfg.Artifacts.Records)
	v.SetDefault("artifacts.trees", cfg.Artifacts.Trees)
	v.SetDefault("artifacts.profile", cfg.Artifacts.Profile)
	v.SetDefault("artifacts.snapshot", cfg.Artifacts.Snapshot)
	v.SetDefault("tiles.max_phrase_runes", cfg.Tiles.MaxPhraseRunes)
	v.SetDefault("quality.reject_low_information", cfg.Quality.RejectLowInformation)
	v.SetDefault("indexer.patterns", cfg.Indexer.Patterns)
	v.SetDefault("indexer.question_match", cfg.Indexer.QuestionMatch)
	v.SetDefault("profile.base", cfg.Profile.Base)
	v.SetDefault("profile.dialect", string(cfg.Profile.Dialect))
	v.SetDefault("profile.temperature", cfg.Profile.Temperature)
	v.SetDefault("profile.top_p", cfg.Profile.TopP)
	v.SetDefault("profile.top_k", cfg.Profile.TopK)
	v.SetDefault("profile.repeat_penalty", cfg.Profile.RepeatPenalty)
	v.SetDefault("profile.num_predict", cfg.Profile.NumPredict)
	v.SetDefault("profile.stop", cfg.Profile.Stop)
	v.SetDefault("profile.system", cfg.Profile.System)
	v.SetDefault("profile.template", cfg.Profile.Template)
	v.SetDefault("profile.examples", cfg.Profile.Examples)
	v.SetDefault("observability.event_log", cfg.Observability.EventLog)
	v.SetDefault("observability.alerts.max_rejection_ratio", cfg.Observability.Alerts.MaxRejectionRatio)
	v.SetDefault("observability.alerts.max_empty_categories", cfg.Observability.Alerts.MaxEmptyCategories)
	v.SetDefault("observability.alerts.stale_days", cfg.Observability.Alerts.StaleDays)
}

// Load reads the configuration. Unknown keys under "profile" are rejected
// because the profile is a closed record.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	v := viper.New()
	if cm.configFile != "" {
		v.SetConfigFile(cm.configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(cm.basePath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cm.configFile != "" || !errors.As(err, &notFound) {
			return nil, ConfigError("reading configuration", err)
		}
	}

	if unknown := unknownProfileKeys(v.AllKeys()); len(unknown) > 0 {
		return nil, ConfigError(fmt.Sprintf("unknown profile keys: %s", strings.Join(unknown, ", ")), nil)
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ConfigError("decoding configuration", err)
	}
	return &cfg, nil
}

func unknownProfileKeys(keys []string) []string {
	known := make(map[string]bool, len(KnownProfileKeys))
	for _, k := range KnownProfileKeys {
		known["profile."+k] = true
	}
	var unknown []string
	for _, k := range keys {
		if !strings.HasPrefix(k, "profile.") || known[k] {
			continue
		}
		// Nested keys such as profile.examples.0.input belong to a known parent.
		parent := strings.Join(strings.SplitN(k, ".", 3)[:2], ".")
		if known[parent] && parent != k {
			continue
		}
		unknown = append(unknown, k)
	}
	sort.Strings(unknown)
	return unknown
}

// ValidateConfig checks every section and reports all problems at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return ConfigError("configuration is nil", nil)
	}
	var errs []string

	if cfg.Build.Workers < 1 {
		errs = append(errs, fmt.Sprintf("build.workers %d must be at least 1", cfg.Build.Workers))
	}
	if strings.TrimSpace(cfg.Build.OutputDir) == "" {
		errs = append(errs, "build.output_dir must not be empty")
	}
	if cfg.Build.SampleReasons < 0 {
		errs = append(errs, fmt.Sprintf("build.sample_reasons %d must not be negative", cfg.Build.SampleReasons))
	}
	for _, tag := range cfg.Build.Categories {
		if !tagPattern.MatchString(tag) {
			errs = append(errs, fmt.Sprintf("build.categories: %q is not a lowercase tag", tag))
		}
	}

	names := map[string]string{
		"artifacts.records":  cfg.Artifacts.Records,
		"artifacts.trees":    cfg.Artifacts.Trees,
		"artifacts.profile":  cfg.Artifacts.Profile,
		"artifacts.snapshot": cfg.Artifacts.Snapshot,
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	used := make(map[string]string)
	for _, k := range keys {
		name := names[k]
		switch {
		case strings.TrimSpace(name) == "":
			errs = append(errs, k+" must not be empty")
		case name != filepath.Base(name):
			errs = append(errs, fmt.Sprintf("%s %q must be a bare file name", k, name))
		case used[name] != "":
			errs = append(errs, fmt.Sprintf("%s %q collides with %s", k, name, used[name]))
		default:
			used[name] = k
		}
	}

	if cfg.Tiles.MaxPhraseRunes < 1 || cfg.Tiles.MaxPhraseRunes > 200 {
		errs = append(errs, fmt.Sprintf("tiles.max_phrase_runes %d outside 1..200", cfg.Tiles.MaxPhraseRunes))
	}

	for i, p := range cfg.Indexer.Patterns {
		if !strings.Contains(p, PhrasePlaceholder) {
			errs = append(errs, fmt.Sprintf("indexer.patterns[%d] %q has no %s placeholder", i, p, PhrasePlaceholder))
		} else if strings.TrimSpace(strings.ReplaceAll(p, PhrasePlaceholder, "")) == "" {
			errs = append(errs, fmt.Sprintf("indexer.patterns[%d] %q matches any text", i, p))
		}
	}

	alerts := cfg.Observability.Alerts
	if alerts.MaxRejectionRatio < 0 || alerts.MaxRejectionRatio > 1 {
		errs = append(errs, fmt.Sprintf("observability.alerts.max_rejection_ratio %v outside [0,1]", alerts.MaxRejectionRatio))
	}
	if alerts.MaxEmptyCategories < 0 || alerts.StaleDays < 0 {
		errs = append(errs, "observability.alerts thresholds must not be negative")
	}

	errs = append(errs, ValidateProfile(cfg.Profile)...)

	if len(errs) > 0 {
		return ConfigError(fmt.Sprintf("config validation failed:\n  - %s", strings.Join(errs, "\n  - ")), nil)
	}
	return nil
}
