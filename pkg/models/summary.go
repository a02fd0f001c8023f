package models

// BuildSummary is the machine-readable report printed at the end of a build.
type BuildSummary struct {
	BuildID           string                    `json:"build_id"`
	Seed              uint64                    `json:"seed"`
	Categories        int                       `json:"categories"`
	Accepted          int                       `json:"accepted"`
	RejectedInvalid   int                       `json:"rejected_invalid"`
	RejectedDuplicate int                       `json:"rejected_duplicate"`
	Trees             int                       `json:"trees"`
	ArtifactsWritten  []string                  `json:"artifacts_written"`
	Rejections        map[string]map[string]int `json:"rejections"`
	SampleReasons     []string                  `json:"sample_reasons"`
	EmptyCategories   []string                  `json:"empty_categories"`
}
