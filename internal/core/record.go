package core

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// DefaultMaxPhraseRunes bounds a tile phrase when no limit is configured.
const DefaultMaxPhraseRunes = 40

// RecordBuilder turns a generator scenario into a validated Record.
type RecordBuilder interface {
	Build(cat models.CategoryInfo, sc models.Scenario) (models.Record, error)
}

type recordBuilder struct {
	maxPhraseRunes int
	rejectLowInfo  bool
}

// NewRecordBuilder creates a RecordBuilder. A non-positive maxPhraseRunes
// selects DefaultMaxPhraseRunes.
func NewRecordBuilder(maxPhraseRunes int, rejectLowInfo bool) RecordBuilder {
	if maxPhraseRunes <= 0 {
		maxPhraseRunes = DefaultMaxPhraseRunes
	}
	return &recordBuilder{maxPhraseRunes: maxPhraseRunes, rejectLowInfo: rejectLowInfo}
}

// Build validates sc against the category and returns the record without an id.
func (b *recordBuilder) Build(cat models.CategoryInfo, sc models.Scenario) (models.Record, error) {
	input := strings.TrimSpace(sc.Input)
	if input == "" {
		return models.Record{}, InvalidRecord(ReasonEmptyInput, "scenario in %s has no input", cat.Tag)
	}

	raw := strings.TrimSpace(sc.RawOutput)
	tiles, segments, err := ParseTiles(raw)
	if err != nil {
		return models.Record{}, err
	}
	if segments > models.TilesPerRecord {
		return models.Record{}, InvalidRecord(ReasonExtraTiles,
			"found %d segments in %q, want %d", segments, raw, models.TilesPerRecord)
	}

	seen := make(map[string]bool, len(tiles))
	for _, t := range tiles {
		if n := utf8.RuneCountInString(t.Words); n > b.maxPhraseRunes {
			return models.Record{}, InvalidRecord(ReasonPhraseTooLong,
				"phrase %q has %d runes, limit %d", t.Words, n, b.maxPhraseRunes)
		}
		key := Normalize(t.Words)
		if seen[key] {
			return models.Record{}, InvalidRecord(ReasonDuplicatePhrase, "phrase %q repeats in %q", t.Words, raw)
		}
		seen[key] = true
	}

	layer := sc.Layer
	if layer == 0 {
		layer = 1
	}
	if layer < 1 || layer > models.MaxLayer {
		return models.Record{}, InvalidRecord(ReasonBadLayer, "layer %d outside 1..%d", sc.Layer, models.MaxLayer)
	}

	emotion := cat.EmotionLevel
	switch {
	case sc.EmotionLevel != "":
		emotion = sc.EmotionLevel
	case sc.Emergency:
		emotion = models.EmotionHigh
	}
	if !emotion.Valid() {
		return models.Record{}, InvalidRecord(ReasonBadEmotion, "emotion level %q", emotion)
	}
	if (RequiresHighEmotion(cat.Tag) || sc.Emergency) && emotion != models.EmotionHigh {
		return models.Record{}, InvalidRecord(ReasonEmotionMismatch,
			"%s record %q must be high emotion, got %s", cat.Tag, input, emotion)
	}

	weight := sc.Weight
	if weight == 0 {
		weight = cat.Weight
	}
	if weight == 0 {
		weight = 1.0
	}
	if weight <= 0 || weight > 1 {
		return models.Record{}, InvalidRecord(ReasonBadWeight, "frequency weight %v outside (0, 1]", weight)
	}

	if b.rejectLowInfo && lowInformation(cat.Tag, tiles) {
		return models.Record{}, InvalidRecord(ReasonLowInformation,
			"every phrase of %q only restates %s", raw, cat.Tag)
	}

	usage := models.UsageData{
		Category:        cat.Tag,
		EmotionLevel:    emotion,
		Complexity:      len(tiles),
		FrequencyWeight: weight,
		ContentWarning:  cat.ContentWarning || sc.ContentWarning || sc.Emergency,
		Layer:           layer,
		ParentTrigger:   strings.TrimSpace(sc.ParentTrigger),
	}

	return models.Record{
		Instruction: instructionFor(cat),
		Input:       input,
		AACResponse: models.AACResponse{
			Tiles:          tiles,
			SpokenSentence: SpokenSentence(cat, tiles[0].Words),
			UsageData:      usage,
		},
		RawOutput: raw,
	}, nil
}

// RequiresHighEmotion reports whether every record of tag must carry the high
// emotion level.
func RequiresHighEmotion(tag string) bool {
	return tag == "crisis" || tag == "abuse_safety" || strings.HasPrefix(tag, "sensitive_")
}

// SpokenSentence renders the text-to-speech sentence from the first phrase.
// A category template with a {phrase} slot wins over the preamble form.
func SpokenSentence(cat models.CategoryInfo, phrase string) string {
	p := strings.TrimRight(strings.ToLower(phrase), ".!? ")
	switch {
	case cat.Spoken != "":
		return strings.ReplaceAll(cat.Spoken, "{phrase}", p)
	case cat.Preamble != "":
		return cat.Preamble + ", I " + p + "."
	default:
		return "I " + p + "."
	}
}

// TitleForTag turns "food_ordering" into "Food Ordering".
func TitleForTag(tag string) string {
	return cases.Title(language.English, cases.NoLower).String(strings.ReplaceAll(tag, "_", " "))
}

func instructionFor(cat models.CategoryInfo) string {
	if cat.Instruction != "" {
		return cat.Instruction
	}
	return "AAC " + TitleForTag(cat.Tag)
}

// lowInformation reports whether every phrase only echoes the category name.
func lowInformation(tag string, tiles []models.Tile) bool {
	keys := []string{Normalize(tag), Normalize(strings.ReplaceAll(tag, "_", " "))}
	for _, t := range tiles {
		words := Normalize(t.Words)
		echoes := false
		for _, k := range keys {
			if strings.Contains(words, k) {
				echoes = true
				break
			}
		}
		if !echoes {
			return false
		}
	}
	return true
}
