package models

// CategoryInfo is the metadata a catalog entry contributes to every record
// of that category.
type CategoryInfo struct {
	Tag            string       `yaml:"tag" json:"tag"`
	Instruction    string       `yaml:"instruction" json:"instruction"`
	EmotionLevel   EmotionLevel `yaml:"emotion_level" json:"emotion_level"`
	Preamble       string       `yaml:"preamble,omitempty" json:"preamble,omitempty"`
	Spoken         string       `yaml:"spoken,omitempty" json:"spoken,omitempty"`
	ContentWarning bool         `yaml:"content_warning,omitempty" json:"content_warning,omitempty"`
	Weight         float64      `yaml:"weight" json:"weight"`
}
