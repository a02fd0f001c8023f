package models

// FollowUp links a tile of one node to a record that can follow it.
type FollowUp struct {
	TriggerPhrase string `json:"trigger_phrase"`
	NextRecordRef string `json:"next_record_ref"`
	Layer         int    `json:"layer"`
}

// ConversationNode is a record placed in the drill-down graph.
type ConversationNode struct {
	ID        string     `json:"id"`
	Layer     int        `json:"layer"`
	Record    Record     `json:"record"`
	FollowUps []FollowUp `json:"follow_ups"`
}

// DrillDownLevels buckets a category's nodes by layer.
type DrillDownLevels struct {
	Level1 []ConversationNode `json:"level_1"`
	Level2 []ConversationNode `json:"level_2"`
	Level3 []ConversationNode `json:"level_3"`
	Level4 []ConversationNode `json:"level_4"`
}

// Level returns the bucket for layer n (1..4), or nil.
func (d *DrillDownLevels) Level(n int) *[]ConversationNode {
	switch n {
	case 1:
		return &d.Level1
	case 2:
		return &d.Level2
	case 3:
		return &d.Level3
	case 4:
		return &d.Level4
	}
	return nil
}

// ConversationTree is the per-category view of the corpus.
// RootResponses and ConversationPaths hold record ids.
type ConversationTree struct {
	Category          string              `json:"category"`
	RootResponses     []string            `json:"root_responses"`
	ConversationPaths map[string][]string `json:"conversation_paths"`
	DrillDownLevels   DrillDownLevels     `json:"drill_down_levels"`
}

// NavigationRules describes how a UI walks the tree.
type NavigationRules struct {
	ResponseSelection   string `json:"response_selection"`
	FollowUpGeneration  string `json:"follow_up_generation"`
	ConversationDepth   string `json:"conversation_depth"`
	ContextPreservation string `json:"context_preservation"`
}

// UsageInstructions is the consumer-facing usage summary.
type UsageInstructions struct {
	Initialization   string `json:"initialization"`
	UserInteraction  string `json:"user_interaction"`
	SystemResponse   string `json:"system_response"`
	ConversationFlow string `json:"conversation_flow"`
	FallbackBehavior string `json:"fallback_behavior"`
}

// TreeIndex is the single document holding every conversation tree of a build.
type TreeIndex struct {
	SystemName        string             `json:"system_name"`
	Version           string             `json:"version"`
	TotalCategories   int                `json:"total_categories"`
	ConversationTrees []ConversationTree `json:"conversation_trees"`
	NavigationRules   NavigationRules    `json:"navigation_rules"`
	UsageInstructions UsageInstructions  `json:"usage_instructions"`
}

// Node finds a node by record id across all trees.
func (ti *TreeIndex) Node(id string) (*ConversationNode, bool) {
	for i := range ti.ConversationTrees {
		levels := &ti.ConversationTrees[i].DrillDownLevels
		for n := 1; n <= MaxLayer; n++ {
			bucket := *levels.Level(n)
			for j := range bucket {
				if bucket[j].ID == id {
					return &bucket[j], true
				}
			}
		}
	}
	return nil, false
}
