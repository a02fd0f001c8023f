package core

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Violation is one broken corpus guarantee found by CheckCorpus or
// CheckTreeIndex.
type Violation struct {
	RecordID string `json:"record_id,omitempty"`
	Line     int    `json:"line,omitempty"`
	Check    string `json:"check"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	where := v.RecordID
	if where == "" {
		where = fmt.Sprintf("line %d", v.Line)
	}
	return fmt.Sprintf("%s [%s] %s", where, v.Check, v.Message)
}

// CheckCorpus re-verifies an emitted record stream. Records are expected in
// stream order; Line is the 1-based position.
func CheckCorpus(records []models.Record, maxPhraseRunes int) []Violation {
	if maxPhraseRunes <= 0 {
		maxPhraseRunes = DefaultMaxPhraseRunes
	}
	var out []Violation
	seenOutput := make(map[string]string)
	seenID := make(map[string]bool)

	for i := range records {
		rec := &records[i]
		add := func(check, format string, args ...any) {
			out = append(out, Violation{RecordID: rec.ID, Line: i + 1, Check: check, Message: fmt.Sprintf(format, args...)})
		}

		if rec.ID != "" {
			if seenID[rec.ID] {
				add("id", "id repeats")
			}
			seenID[rec.ID] = true
		}

		tiles := rec.AACResponse.Tiles
		if len(tiles) != models.TilesPerRecord {
			add("tile_count", "has %d tiles", len(tiles))
		}
		if c := rec.AACResponse.UsageData.Complexity; c != len(tiles) {
			add("complexity", "complexity %d does not match %d tiles", c, len(tiles))
		}

		phrases := make(map[string]bool)
		for _, t := range tiles {
			if strings.TrimSpace(t.Words) == "" {
				add("phrase", "tile %s has an empty phrase", t.TileID)
				continue
			}
			if n := utf8.RuneCountInString(t.Words); n > maxPhraseRunes {
				add("phrase", "phrase %q has %d runes", t.Words, n)
			}
			key := Normalize(t.Words)
			if phrases[key] {
				add("phrase", "phrase %q repeats", t.Words)
			}
			phrases[key] = true
			if isASCII(t.Words) && t.Emoji != models.FallbackEmoji && !strings.Contains(rec.RawOutput, t.Emoji) {
				add("emoji", "emoji %q of %q is not in the raw output", t.Emoji, t.Words)
			}
		}

		reparsed, n, err := ParseTiles(rec.RawOutput)
		switch {
		case err != nil:
			add("round_trip", "raw output does not parse: %v", err)
		case n != models.TilesPerRecord:
			add("round_trip", "raw output has %d segments", n)
		case !reflect.DeepEqual(reparsed, tiles):
			add("round_trip", "tiles differ from parsed raw output")
		}

		usage := rec.AACResponse.UsageData
		if l := rec.Layer(); l < 1 || l > models.MaxLayer {
			add("layer", "layer %d outside 1..%d", l, models.MaxLayer)
		}
		if !usage.EmotionLevel.Valid() {
			add("emotion", "emotion level %q", usage.EmotionLevel)
		} else if RequiresHighEmotion(usage.Category) && usage.EmotionLevel != models.EmotionHigh {
			add("emotion", "%s record has %s emotion", usage.Category, usage.EmotionLevel)
		}
		if usage.FrequencyWeight <= 0 || usage.FrequencyWeight > 1 {
			add("weight", "frequency weight %v", usage.FrequencyWeight)
		}

		key := Normalize(rec.RawOutput)
		if first, dup := seenOutput[key]; dup {
			add("unique_output", "raw output already used by %s", first)
		} else {
			seenOutput[key] = fmt.Sprintf("line %d", i+1)
		}
	}
	return out
}

// CheckTreeIndex verifies the depth bound and that every reference resolves
// to a node one layer below its source.
func CheckTreeIndex(idx *models.TreeIndex) []Violation {
	var out []Violation
	known := make(map[string]int)
	for _, tree := range idx.ConversationTrees {
		for n := 1; n <= models.MaxLayer; n++ {
			for _, node := range *tree.DrillDownLevels.Level(n) {
				known[node.ID] = node.Layer
			}
		}
	}
	for _, tree := range idx.ConversationTrees {
		for n := 1; n <= models.MaxLayer; n++ {
			for _, node := range *tree.DrillDownLevels.Level(n) {
				if node.Layer != n {
					out = append(out, Violation{RecordID: node.ID, Check: "depth", Message: fmt.Sprintf("layer %d node in level_%d", node.Layer, n)})
				}
				if node.Layer >= models.MaxLayer && len(node.FollowUps) > 0 {
					out = append(out, Violation{RecordID: node.ID, Check: "depth", Message: "leaf layer has follow-ups"})
				}
				for _, f := range node.FollowUps {
					if f.Layer > models.MaxLayer {
						out = append(out, Violation{RecordID: node.ID, Check: "depth", Message: fmt.Sprintf("follow-up layer %d", f.Layer)})
					}
					target, ok := known[f.NextRecordRef]
					switch {
					case !ok:
						out = append(out, Violation{RecordID: node.ID, Check: "reference", Message: fmt.Sprintf("follow-up %s does not exist", f.NextRecordRef)})
					case f.Layer != node.Layer+1 || target != f.Layer:
						out = append(out, Violation{RecordID: node.ID, Check: "depth", Message: fmt.Sprintf("follow-up %s is layer %d, edge says %d", f.NextRecordRef, target, f.Layer)})
					}
				}
			}
		}
		for _, id := range tree.RootResponses {
			if _, ok := known[id]; !ok {
				out = append(out, Violation{Check: "reference", Message: fmt.Sprintf("root %s of %s does not exist", id, tree.Category)})
			}
		}
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
