package core

import (
	"sort"
	"strings"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Tree index constants.
const (
	TreeSystemName     = "TinkyBink Full Conversational Logic System"
	TreeIndexVersion   = "Complete Multi-Layer Navigation"
	PhrasePlaceholder  = "{phrase}"
	MaxFollowUpsPerTap = 3
)

// DefaultFollowUpPatterns are the input shapes that mark a record as the
// answer to tapping a phrase.
var DefaultFollowUpPatterns = []string{
	"picked {phrase}",
	"chose {phrase}",
	"{phrase} selected",
	"you said {phrase}",
}

// Indexer links records into per-category conversation trees.
type Indexer interface {
	Build(records []models.Record) *models.TreeIndex
}

type indexer struct {
	patterns      []string
	questionMatch bool
}

// NewIndexer creates an Indexer from the matching settings. Empty patterns
// fall back to DefaultFollowUpPatterns.
func NewIndexer(cfg models.IndexerSettings) Indexer {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultFollowUpPatterns
	}
	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = Normalize(p)
	}
	return &indexer{patterns: folded, questionMatch: cfg.QuestionMatch}
}

// Build computes follow-ups for every record and groups the nodes by category.
// Records must carry ids and arrive in corpus order.
func (ix *indexer) Build(records []models.Record) *models.TreeIndex {
	c := newCorpusIndex(records)

	trees := make(map[string]*models.ConversationTree)
	var tags []string
	for i := range records {
		rec := &records[i]
		tag := rec.Category()
		tree, ok := trees[tag]
		if !ok {
			tree = &models.ConversationTree{
				Category:          tag,
				RootResponses:     []string{},
				ConversationPaths: map[string][]string{},
				DrillDownLevels: models.DrillDownLevels{
					Level1: []models.ConversationNode{},
					Level2: []models.ConversationNode{},
					Level3: []models.ConversationNode{},
					Level4: []models.ConversationNode{},
				},
			}
			trees[tag] = tree
			tags = append(tags, tag)
		}

		node := models.ConversationNode{
			ID:        rec.ID,
			Layer:     rec.Layer(),
			Record:    *rec,
			FollowUps: ix.followUps(c, i),
		}
		bucket := tree.DrillDownLevels.Level(node.Layer)
		*bucket = append(*bucket, node)

		if node.Layer == 1 {
			tree.RootResponses = append(tree.RootResponses, node.ID)
		}
		if len(node.FollowUps) > 0 {
			tree.ConversationPaths[rec.Input] = append(tree.ConversationPaths[rec.Input], node.ID)
		}
	}

	sort.Strings(tags)
	out := make([]models.ConversationTree, 0, len(tags))
	for _, tag := range tags {
		out = append(out, *trees[tag])
	}

	return &models.TreeIndex{
		SystemName:        TreeSystemName,
		Version:           TreeIndexVersion,
		TotalCategories:   len(out),
		ConversationTrees: out,
		NavigationRules: models.NavigationRules{
			ResponseSelection:   "User clicks on any of the 4 tiles",
			FollowUpGeneration:  "System provides contextual next responses",
			ConversationDepth:   "Up to 4 levels of drill-down",
			ContextPreservation: "Previous choices influence next options",
		},
		UsageInstructions: models.UsageInstructions{
			Initialization:   "Start with category-appropriate greeting or question",
			UserInteraction:  "User selects from 4 emoji-word tiles",
			SystemResponse:   "Provide relevant follow-up options based on selection",
			ConversationFlow: "Continue until user goal is achieved or max depth reached",
			FallbackBehavior: "Return to main menu or category selection",
		},
	}
}

// followUps returns up to MaxFollowUpsPerTap targets per tile of record i,
// tiles in order. Only records on the next layer qualify, so every path
// deepens by one layer per tap. Layer-4 records are leaves.
func (ix *indexer) followUps(c *corpusIndex, i int) []models.FollowUp {
	rec := &c.records[i]
	out := []models.FollowUp{}
	if rec.Layer() >= models.MaxLayer {
		return out
	}
	next := rec.Layer() + 1

	for _, tile := range rec.AACResponse.Tiles {
		phrase := Normalize(tile.Words)
		if phrase == "" {
			continue
		}
		matches := c.matchesFor(phrase, ix.needles(phrase))
		taken := 0
		seenInput := make(map[string]bool)
		for _, m := range matches {
			if taken == MaxFollowUpsPerTap {
				break
			}
			if m == i || c.records[m].Layer() != next {
				continue
			}
			key := c.inputs[m]
			if seenInput[key] {
				continue
			}
			seenInput[key] = true
			best := c.bestOf(key, i, next)
			if best < 0 {
				continue
			}
			out = append(out, models.FollowUp{
				TriggerPhrase: tile.Words,
				NextRecordRef: c.records[best].ID,
				Layer:         next,
			})
			taken++
		}
	}
	return out
}

// needles expands the configured patterns for one folded phrase. The
// question match is expressed as a needle pair checked by matchesFor.
func (ix *indexer) needles(phrase string) []needle {
	out := make([]needle, 0, len(ix.patterns)+1)
	for _, p := range ix.patterns {
		out = append(out, needle{text: strings.ReplaceAll(p, PhrasePlaceholder, phrase)})
	}
	if ix.questionMatch {
		out = append(out, needle{text: phrase, requireQuestion: true})
	}
	return out
}

type needle struct {
	text            string
	requireQuestion bool
}

// corpusIndex holds folded inputs, a byte-trigram posting list and the
// identical-input groups used for tie-breaking.
type corpusIndex struct {
	records  []models.Record
	inputs   []string
	trigrams map[string][]int
	groups   map[string][]int
	cache    map[string][]int
}

func newCorpusIndex(records []models.Record) *corpusIndex {
	c := &corpusIndex{
		records:  records,
		inputs:   make([]string, len(records)),
		trigrams: make(map[string][]int),
		groups:   make(map[string][]int),
		cache:    make(map[string][]int),
	}
	for i := range records {
		in := Normalize(records[i].Input)
		c.inputs[i] = in
		c.groups[in] = append(c.groups[in], i)
		seen := make(map[string]bool)
		for j := 0; j+3 <= len(in); j++ {
			tg := in[j : j+3]
			if seen[tg] {
				continue
			}
			seen[tg] = true
			c.trigrams[tg] = append(c.trigrams[tg], i)
		}
	}
	for key, members := range c.groups {
		sort.SliceStable(members, func(a, b int) bool {
			wa := records[members[a]].AACResponse.UsageData.FrequencyWeight
			wb := records[members[b]].AACResponse.UsageData.FrequencyWeight
			if wa != wb {
				return wa > wb
			}
			return members[a] < members[b]
		})
		c.groups[key] = members
	}
	return c
}

// bestOf picks the preferred record on layer among those sharing a folded
// input, skipping self.
func (c *corpusIndex) bestOf(input string, self, layer int) int {
	for _, m := range c.groups[input] {
		if m != self && c.records[m].Layer() == layer {
			return m
		}
	}
	return -1
}

// matchesFor returns the ascending indexes of records whose folded input
// satisfies any needle. Results are cached per phrase.
func (c *corpusIndex) matchesFor(phrase string, needles []needle) []int {
	if hit, ok := c.cache[phrase]; ok {
		return hit
	}
	set := make(map[int]bool)
	for _, n := range needles {
		for _, i := range c.candidates(n.text) {
			in := c.inputs[i]
			if !strings.Contains(in, n.text) {
				continue
			}
			if n.requireQuestion && !strings.Contains(in, "?") {
				continue
			}
			set[i] = true
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	c.cache[phrase] = out
	return out
}

// candidates narrows the scan with the rarest trigram of text. Short needles
// scan every record.
func (c *corpusIndex) candidates(text string) []int {
	if len(text) < 3 {
		all := make([]int, len(c.records))
		for i := range all {
			all[i] = i
		}
		return all
	}
	var best []int
	for j := 0; j+3 <= len(text); j++ {
		list, ok := c.trigrams[text[j:j+3]]
		if !ok {
			return nil
		}
		if best == nil || len(list) < len(best) {
			best = list
		}
	}
	return best
}
