package models

// EmotionLevel is the editorial intensity attached to a record.
type EmotionLevel string

const (
	EmotionLow    EmotionLevel = "low"
	EmotionMedium EmotionLevel = "medium"
	EmotionHigh   EmotionLevel = "high"
)

// Valid reports whether e is one of the three recognized levels.
func (e EmotionLevel) Valid() bool {
	switch e {
	case EmotionLow, EmotionMedium, EmotionHigh:
		return true
	}
	return false
}

// FallbackEmoji is used for a tile segment that carries no emoji.
const FallbackEmoji = "💬"

// TilesPerRecord is the fixed size of every response.
const TilesPerRecord = 4

// MaxLayer is the deepest conversation layer.
const MaxLayer = 4

// Tile is one (emoji, phrase) pair shown on the tap-to-speak grid.
type Tile struct {
	Emoji  string `json:"emoji" msgpack:"emoji"`
	Words  string `json:"words" msgpack:"words"`
	TileID string `json:"tile_id" msgpack:"tile_id"`
}

// UsageData is the per-record metadata block.
type UsageData struct {
	Category        string       `json:"category" msgpack:"category"`
	EmotionLevel    EmotionLevel `json:"emotion_level" msgpack:"emotion_level"`
	Complexity      int          `json:"complexity" msgpack:"complexity"`
	FrequencyWeight float64      `json:"frequency_weight" msgpack:"frequency_weight"`
	ContentWarning  bool         `json:"content_warning,omitempty" msgpack:"content_warning,omitempty"`
	Layer           int          `json:"layer,omitempty" msgpack:"layer,omitempty"`
	ParentTrigger   string       `json:"parent_trigger,omitempty" msgpack:"parent_trigger,omitempty"`
}

// AACResponse groups the tiles with the sentence used for text-to-speech.
type AACResponse struct {
	Tiles          []Tile    `json:"tiles" msgpack:"tiles"`
	SpokenSentence string    `json:"spoken_sentence" msgpack:"spoken_sentence"`
	UsageData      UsageData `json:"usage_data" msgpack:"usage_data"`
}

// Record is one training example. Field order is the emitted key order.
type Record struct {
	Instruction string      `json:"instruction" msgpack:"instruction"`
	Input       string      `json:"input" msgpack:"input"`
	AACResponse AACResponse `json:"aac_response" msgpack:"aac_response"`
	RawOutput   string      `json:"raw_output" msgpack:"raw_output"`
	ID          string      `json:"id,omitempty" msgpack:"id,omitempty"`
}

// Category returns the record's category tag.
func (r *Record) Category() string { return r.AACResponse.UsageData.Category }

// Layer returns the conversation layer, defaulting to 1.
func (r *Record) Layer() int {
	if r.AACResponse.UsageData.Layer == 0 {
		return 1
	}
	return r.AACResponse.UsageData.Layer
}

// Scenario is the raw output of a generator before validation.
// Zero values mean "inherit from the category".
type Scenario struct {
	Category       string       `yaml:"-" json:"category"`
	Input          string       `yaml:"input" json:"input"`
	RawOutput      string       `yaml:"output" json:"output"`
	Layer          int          `yaml:"layer,omitempty" json:"layer,omitempty"`
	ParentTrigger  string       `yaml:"parent_trigger,omitempty" json:"parent_trigger,omitempty"`
	EmotionLevel   EmotionLevel `yaml:"emotion_level,omitempty" json:"emotion_level,omitempty"`
	Weight         float64      `yaml:"weight,omitempty" json:"weight,omitempty"`
	ContentWarning bool         `yaml:"content_warning,omitempty" json:"content_warning,omitempty"`
	Emergency      bool         `yaml:"emergency,omitempty" json:"emergency,omitempty"`
}
