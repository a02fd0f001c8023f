package core

import (
	"fmt"
	"testing"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// --- Helpers ---

type entry struct {
	cat    string
	input  string
	raw    string
	layer  int
	weight float64
}

// corpus builds records in the given order and assigns per-category ids.
func corpus(t *testing.T, entries ...entry) []models.Record {
	t.Helper()
	b := NewRecordBuilder(40, false)
	ordinal := map[string]int{}
	var out []models.Record
	for _, e := range entries {
		r, err := b.Build(models.CategoryInfo{Tag: e.cat, EmotionLevel: models.EmotionMedium, Weight: 1},
			models.Scenario{Input: e.input, RawOutput: e.raw, Layer: e.layer, Weight: e.weight})
		if err != nil {
			t.Fatalf("building %q: %v", e.input, err)
		}
		r.ID = fmt.Sprintf("%s_%d", e.cat, ordinal[e.cat])
		ordinal[e.cat]++
		out = append(out, r)
	}
	return out
}

func defaultIndexer() Indexer {
	return NewIndexer(models.IndexerSettings{Patterns: DefaultFollowUpPatterns, QuestionMatch: true})
}

func followUpRefs(node *models.ConversationNode, trigger string) []string {
	var refs []string
	for _, f := range node.FollowUps {
		if f.TriggerPhrase == trigger {
			refs = append(refs, f.NextRecordRef)
		}
	}
	return refs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- Build tests ---

func TestIndexer_PizzaDrillDown(t *testing.T) {
	records := corpus(t,
		entry{cat: "food_ordering", input: "Want pizza", raw: "🍕 Pizza, 🍔 Burger, 🌮 Tacos, 🍗 Chicken"},
		entry{cat: "food_ordering", input: "Pizza chosen! What toppings?", raw: "🍄 Mushrooms, 🥓 Bacon, 🧄 Pepperoni, 🧀 Extra cheese", layer: 2},
		entry{cat: "food_ordering", input: "Burger picked! How cooked?", raw: "🥩 Rare, 🔥 Medium, 🍖 Well done, 🧀 Add cheese", layer: 2},
	)
	idx := defaultIndexer().Build(records)

	node, ok := idx.Node("food_ordering_0")
	if !ok {
		t.Fatal("root node missing")
	}
	if refs := followUpRefs(node, "Pizza"); !contains(refs, "food_ordering_1") {
		t.Errorf("Pizza follow-ups = %v, want food_ordering_1", refs)
	}
	if refs := followUpRefs(node, "Burger"); !contains(refs, "food_ordering_2") {
		t.Errorf("Burger follow-ups = %v, want food_ordering_2", refs)
	}
	for _, f := range node.FollowUps {
		if f.Layer != 2 {
			t.Errorf("follow-up layer = %d, want 2", f.Layer)
		}
	}

	tree := idx.ConversationTrees[0]
	if len(tree.RootResponses) != 1 || tree.RootResponses[0] != "food_ordering_0" {
		t.Errorf("RootResponses = %v", tree.RootResponses)
	}
	if got := tree.ConversationPaths["Want pizza"]; len(got) != 1 || got[0] != "food_ordering_0" {
		t.Errorf("ConversationPaths[Want pizza] = %v", got)
	}
	if len(tree.DrillDownLevels.Level2) != 2 {
		t.Errorf("level_2 = %d nodes, want 2", len(tree.DrillDownLevels.Level2))
	}
}

func TestIndexer_LayerFourIsLeaf(t *testing.T) {
	records := corpus(t,
		entry{cat: "food_ordering", input: "Party size! Which crust?", raw: "🍞 Thin, 🥖 Thick, 🧀 Stuffed, 🌾 Gluten free", layer: 4},
		entry{cat: "food_ordering", input: "Thin chosen! Anything else?", raw: "🥤 Drink, 🍰 Dessert, ✅ Done, ❌ Cancel", layer: 4},
	)
	idx := defaultIndexer().Build(records)
	node, _ := idx.Node("food_ordering_0")
	if len(node.FollowUps) != 0 {
		t.Errorf("layer-4 node has %d follow-ups, want 0", len(node.FollowUps))
	}
	if violations := CheckTreeIndex(idx); len(violations) != 0 {
		t.Errorf("violations = %v", violations)
	}
}

func TestIndexer_FollowUpLayerCapped(t *testing.T) {
	records := corpus(t,
		entry{cat: "food_ordering", input: "Large pizza! Crust type?", raw: "🍞 Thin crust, 🥖 Thick crust, 🧀 Stuffed crust, 🔥 Wood fired", layer: 3},
		entry{cat: "food_ordering", input: "Wood fired chosen! Extra?", raw: "🌿 Basil, 🧄 Garlic, 🌶️ Chili flakes, ✅ Nothing else", layer: 4},
	)
	idx := defaultIndexer().Build(records)
	node, _ := idx.Node("food_ordering_0")
	refs := followUpRefs(node, "Wood fired")
	if len(refs) != 1 || refs[0] != "food_ordering_1" {
		t.Fatalf("Wood fired follow-ups = %v", refs)
	}
	if node.FollowUps[0].Layer != 4 {
		t.Errorf("layer = %d, want 4", node.FollowUps[0].Layer)
	}
}

func TestIndexer_AtMostThreePerTile(t *testing.T) {
	entries := []entry{{cat: "games", input: "Pick one", raw: "🎲 Dice, 🃏 Cards, ♟️ Chess, 🧩 Puzzle"}}
	for i := 0; i < 5; i++ {
		entries = append(entries, entry{
			cat:   "games",
			input: fmt.Sprintf("You picked dice! Round %d?", i),
			raw:   fmt.Sprintf("🔢 Roll %d, 🎯 Aim %d, 🏆 Win %d, 🔁 Again %d", i, i, i, i),
			layer: 2,
		})
	}
	idx := defaultIndexer().Build(corpus(t, entries...))
	node, _ := idx.Node("games_0")
	refs := followUpRefs(node, "Dice")
	want := []string{"games_1", "games_2", "games_3"}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}
}

func TestIndexer_IdenticalInputsPreferHigherWeight(t *testing.T) {
	records := corpus(t,
		entry{cat: "a_first", input: "Choose drink", raw: "☕ Coffee, 🍵 Tea, 🥤 Soda, 💧 Water"},
		entry{cat: "b_second", input: "Coffee selected", raw: "🥛 Milk, 🍬 Sugar, ⚫ Black, 🧊 Iced", layer: 2, weight: 0.5},
		entry{cat: "b_second", input: "coffee  selected", raw: "🥛 Oat milk, 🍯 Honey, 🌰 Hazelnut, 🔥 Hot", layer: 2, weight: 0.9},
	)
	idx := defaultIndexer().Build(records)
	node, _ := idx.Node("a_first_0")
	refs := followUpRefs(node, "Coffee")
	if len(refs) != 1 || refs[0] != "b_second_1" {
		t.Errorf("Coffee follow-ups = %v, want [b_second_1]", refs)
	}
}

func TestIndexer_ExcludesSelf(t *testing.T) {
	records := corpus(t,
		entry{cat: "chat", input: "Yes or no?", raw: "✅ Yes, ❌ No, 🤔 Maybe, 🤷 Unsure"},
	)
	idx := defaultIndexer().Build(records)
	node, _ := idx.Node("chat_0")
	if len(node.FollowUps) != 0 {
		t.Errorf("follow-ups = %+v, want none", node.FollowUps)
	}
}

func TestIndexer_CaseInsensitive(t *testing.T) {
	records := corpus(t,
		entry{cat: "chat", input: "Start", raw: "🌞 SUNNY day, 🌧️ Rain, ⛄ Snow, 🌬️ Wind"},
		entry{cat: "chat", input: "YOU SAID sunny DAY", raw: "🕶️ Sunglasses, 🧴 Sunscreen, 🧢 Hat, 🏖️ Beach", layer: 2},
	)
	idx := defaultIndexer().Build(records)
	node, _ := idx.Node("chat_0")
	if refs := followUpRefs(node, "SUNNY day"); len(refs) != 1 || refs[0] != "chat_1" {
		t.Errorf("refs = %v, want [chat_1]", refs)
	}
}

func TestIndexer_TreesSortedByCategory(t *testing.T) {
	records := corpus(t,
		entry{cat: "zoo", input: "z", raw: "🦓 Zebra, 🦁 Lion, 🐘 Elephant, 🦒 Giraffe"},
		entry{cat: "art", input: "a", raw: "🎨 Paint, ✏️ Draw, 🖌️ Brush, 🖼️ Frame"},
	)
	idx := defaultIndexer().Build(records)
	if idx.TotalCategories != 2 {
		t.Fatalf("TotalCategories = %d, want 2", idx.TotalCategories)
	}
	if idx.ConversationTrees[0].Category != "art" || idx.ConversationTrees[1].Category != "zoo" {
		t.Errorf("order = %s, %s", idx.ConversationTrees[0].Category, idx.ConversationTrees[1].Category)
	}
	if idx.SystemName != TreeSystemName {
		t.Errorf("SystemName = %q", idx.SystemName)
	}
}

func TestIndexer_CustomPatterns(t *testing.T) {
	records := corpus(t,
		entry{cat: "chat", input: "Start", raw: "🍎 Apple, 🍌 Banana, 🍇 Grapes, 🍊 Orange"},
		entry{cat: "chat", input: "More about apple", raw: "🍏 Green, 🍎 Red, 🥧 Pie, 🧃 Juice", layer: 2},
		entry{cat: "chat", input: "Picked banana", raw: "🍌 Ripe, 🟢 Unripe, 🍨 Split, 🥞 Pancake", layer: 2},
	)
	idx := NewIndexer(models.IndexerSettings{Patterns: []string{"more about {phrase}"}}).Build(records)
	node, _ := idx.Node("chat_0")
	if refs := followUpRefs(node, "Apple"); len(refs) != 1 || refs[0] != "chat_1" {
		t.Errorf("Apple refs = %v, want [chat_1]", refs)
	}
	if refs := followUpRefs(node, "Banana"); len(refs) != 0 {
		t.Errorf("Banana refs = %v, want none with custom patterns", refs)
	}
}

func TestIndexer_SameLayerRecordsDoNotLink(t *testing.T) {
	records := corpus(t,
		entry{cat: "food_ordering", input: "Pizza? Sure", raw: "🥗 Salad, 🥤 Drink, 🍰 Cake, 🍟 Fries"},
		entry{cat: "food_ordering", input: "Salad? Sure", raw: "🍕 Pizza, 🍪 Cookie, 🧃 Juice, 🍎 Apple"},
	)
	idx := defaultIndexer().Build(records)
	for _, id := range []string{"food_ordering_0", "food_ordering_1"} {
		node, _ := idx.Node(id)
		if len(node.FollowUps) != 0 {
			t.Errorf("%s follow-ups = %+v, want none between layer-1 records", id, node.FollowUps)
		}
	}
}

func TestIndexer_EveryPathDeepensToLayerFour(t *testing.T) {
	records := corpus(t,
		entry{cat: "food_ordering", input: "Pizza? Sure", raw: "🥗 Salad, 🍕 Pizza, 🥤 Drink, 🍰 Cake"},
		entry{cat: "food_ordering", input: "Salad? Sure", raw: "🍕 Pizza, 🥗 Salad, 🍟 Fries, 🍪 Cookie"},
		entry{cat: "food_ordering", input: "You picked salad! Dressing?", raw: "🫒 Oil, 🍋 Lemon, 🧀 Ranch, 🍕 Pizza", layer: 2},
		entry{cat: "food_ordering", input: "Chose pizza! Crust?", raw: "🍞 Thin, 🥖 Thick, 🥗 Salad, 🧀 Stuffed", layer: 3},
		entry{cat: "food_ordering", input: "Salad selected again?", raw: "✅ Done, ❌ Cancel, 🍕 Pizza, 🔁 Again", layer: 4},
	)
	idx := defaultIndexer().Build(records)
	if v := CheckTreeIndex(idx); len(v) != 0 {
		t.Fatalf("violations = %v", v)
	}

	deepest := 0
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if depth > models.MaxLayer {
			t.Fatalf("path through %s is %d nodes long, want at most %d", id, depth, models.MaxLayer)
		}
		if depth > deepest {
			deepest = depth
		}
		node, ok := idx.Node(id)
		if !ok {
			t.Fatalf("node %s missing", id)
		}
		if node.Layer != depth {
			t.Errorf("%s at depth %d has layer %d", id, depth, node.Layer)
		}
		for _, f := range node.FollowUps {
			walk(f.NextRecordRef, depth+1)
		}
	}
	for _, root := range idx.ConversationTrees[0].RootResponses {
		walk(root, 1)
	}
	if deepest != models.MaxLayer {
		t.Errorf("deepest path = %d nodes, want %d", deepest, models.MaxLayer)
	}
}
