package models

// BuildSettings controls a single corpus build.
type BuildSettings struct {
	Seed          uint64   `yaml:"seed" mapstructure:"seed"`
	OutputDir     string   `yaml:"output_dir" mapstructure:"output_dir"`
	Workers       int      `yaml:"workers" mapstructure:"workers"`
	Categories    []string `yaml:"categories,omitempty" mapstructure:"categories"`
	SampleReasons int      `yaml:"sample_reasons" mapstructure:"sample_reasons"`
	Snapshot      bool     `yaml:"snapshot" mapstructure:"snapshot"`
}

// CatalogSettings points at extra category definitions.
type CatalogSettings struct {
	DataDir string `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
}

// ArtifactNames holds the file names of each artifact family.
type ArtifactNames struct {
	Records  string `yaml:"records" mapstructure:"records"`
	Trees    string `yaml:"trees" mapstructure:"trees"`
	Profile  string `yaml:"profile" mapstructure:"profile"`
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"`
}

// TileSettings bounds tile parsing.
type TileSettings struct {
	MaxPhraseRunes int `yaml:"max_phrase_runes" mapstructure:"max_phrase_runes"`
}

// QualitySettings holds optional record filters.
type QualitySettings struct {
	RejectLowInformation bool `yaml:"reject_low_information" mapstructure:"reject_low_information"`
}

// IndexerSettings configures follow-up matching.
// Each pattern contains a {phrase} placeholder.
type IndexerSettings struct {
	Patterns      []string `yaml:"patterns" mapstructure:"patterns"`
	QuestionMatch bool     `yaml:"question_match" mapstructure:"question_match"`
}

// ProfileExample is one few-shot pair rendered into the system prompt.
type ProfileExample struct {
	Input  string `yaml:"input" mapstructure:"input"`
	Output string `yaml:"output" mapstructure:"output"`
}

// ProfileDialect selects the stanza keywords of the backend profile.
type ProfileDialect string

const (
	DialectModelfile ProfileDialect = "modelfile"
	DialectOllama    ProfileDialect = "ollama"
)

// ProfileConfig is the single configuration record read by the profile composer.
type ProfileConfig struct {
	Base          string           `yaml:"base" mapstructure:"base"`
	Dialect       ProfileDialect   `yaml:"dialect" mapstructure:"dialect"`
	Temperature   float64          `yaml:"temperature" mapstructure:"temperature"`
	TopP          float64          `yaml:"top_p" mapstructure:"top_p"`
	TopK          int              `yaml:"top_k" mapstructure:"top_k"`
	RepeatPenalty float64          `yaml:"repeat_penalty" mapstructure:"repeat_penalty"`
	NumPredict    int              `yaml:"num_predict" mapstructure:"num_predict"`
	Stop          []string         `yaml:"stop" mapstructure:"stop"`
	System        string           `yaml:"system" mapstructure:"system"`
	Template      string           `yaml:"template" mapstructure:"template"`
	Examples      []ProfileExample `yaml:"examples,omitempty" mapstructure:"examples"`
}

// AlertSettings holds the build health thresholds.
type AlertSettings struct {
	MaxRejectionRatio  float64 `yaml:"max_rejection_ratio" mapstructure:"max_rejection_ratio"`
	MaxEmptyCategories int     `yaml:"max_empty_categories" mapstructure:"max_empty_categories"`
	StaleDays          int     `yaml:"stale_days" mapstructure:"stale_days"`
}

// ObservabilitySettings locates the build event log.
type ObservabilitySettings struct {
	EventLog string        `yaml:"event_log" mapstructure:"event_log"`
	Alerts   AlertSettings `yaml:"alerts" mapstructure:"alerts"`
}

// Config is the full tinkybink.yaml document.
type Config struct {
	Build         BuildSettings         `yaml:"build" mapstructure:"build"`
	Catalog       CatalogSettings       `yaml:"catalog" mapstructure:"catalog"`
	Artifacts     ArtifactNames         `yaml:"artifacts" mapstructure:"artifacts"`
	Tiles         TileSettings          `yaml:"tiles" mapstructure:"tiles"`
	Quality       QualitySettings       `yaml:"quality" mapstructure:"quality"`
	Indexer       IndexerSettings       `yaml:"indexer" mapstructure:"indexer"`
	Profile       ProfileConfig         `yaml:"profile" mapstructure:"profile"`
	Observability ObservabilitySettings `yaml:"observability" mapstructure:"observability"`
}
