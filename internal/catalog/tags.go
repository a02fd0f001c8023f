package catalog

// KnownTags is the vocabulary of category tags shipped with the engine.
// Consumers must tolerate tags outside this list.
var KnownTags = []string{
	"abuse_safety", "accessibility", "activities", "agriculture", "ai", "anthropology",
	"architecture", "astronomy", "automotive", "aviation", "banking",
	"behavioral_addictions", "biotechnology", "broadcasting", "community",
	"conversation", "crisis", "cyber_issues", "cybersecurity", "daily_routines",
	"dining", "diy", "emotions", "energy", "entertainment", "environmental", "events",
	"financial_crimes", "fitness", "food_ordering", "foodservice", "forensics",
	"future", "gaming", "geology", "goals", "greetings", "healthcare",
	"home_management", "insurance", "legal_justice", "libraries", "linguistics",
	"logistics", "manufacturing", "marine", "maritime", "mathematics", "medical",
	"meteorology", "military", "mining", "museums", "nanotechnology", "news",
	"parenting", "parks", "pets", "philosophical", "psychology", "publishing",
	"quantum", "railway", "realestate", "religious", "robotics", "safety", "school",
	"science", "security", "seismology", "sensitive_grief", "sensitive_health",
	"sensitive_trauma", "shopping", "social", "specialized_education",
	"specialized_medical", "technology", "telecommunications", "textiles",
	"transportation", "travel", "volcanology", "waste", "weather_clothing",
	"workplace", "zoos",
}

// extensionTags were added beyond the original category vocabulary.
var extensionTags = map[string]bool{
	"conversation": true, "social": true, "technology": true, "accessibility": true,
	"philosophical": true, "military": true, "science": true, "environmental": true,
	"workplace": true, "safety": true,
}

var knownTagSet = func() map[string]bool {
	m := make(map[string]bool, len(KnownTags))
	for _, t := range KnownTags {
		m[t] = true
	}
	return m
}()

// IsKnownTag reports whether tag belongs to the shipped vocabulary.
func IsKnownTag(tag string) bool { return knownTagSet[tag] }

// IsExtension reports whether tag is one of the extension categories.
func IsExtension(tag string) bool { return extensionTags[tag] }
