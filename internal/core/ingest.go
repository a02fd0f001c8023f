package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// IngestItem is one externally supplied scenario, e.g. a curated pair or a
// backend completion captured for review.
type IngestItem struct {
	Category      string              `json:"category"`
	Input         string              `json:"input"`
	Output        string              `json:"output"`
	Layer         int                 `json:"layer,omitempty"`
	ParentTrigger string              `json:"parent_trigger,omitempty"`
	EmotionLevel  models.EmotionLevel `json:"emotion_level,omitempty"`
	Emergency     bool                `json:"emergency,omitempty"`
}

// IngestResult reports what an ingest added to an existing corpus.
type IngestResult struct {
	Records           []models.Record           `json:"-"`
	Accepted          int                       `json:"accepted"`
	RejectedInvalid   int                       `json:"rejected_invalid"`
	RejectedDuplicate int                       `json:"rejected_duplicate"`
	Rejections        map[string]map[string]int `json:"rejections"`
	SampleReasons     []string                  `json:"sample_reasons"`
}

// DecodeIngestItems reads either a JSON array or one JSON object per line.
// Malformed JSON is repaired once before giving up.
func DecodeIngestItems(data []byte) ([]IngestItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []IngestItem
		if err := unmarshalJSON(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding ingest array: %w", err)
		}
		return items, nil
	}

	var items []IngestItem
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var item IngestItem
		if err := unmarshalJSON(text, &item); err != nil {
			return nil, fmt.Errorf("decoding ingest line %d: %w", line, err)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ingest input: %w", err)
	}
	return items, nil
}

func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// CategoryLookup resolves category metadata by tag.
type CategoryLookup interface {
	Info(tag string) (models.CategoryInfo, bool)
}

// Ingest validates items against the catalog and appends the accepted ones
// to existing, continuing each category's id sequence. Outputs already in
// existing count as duplicates.
func Ingest(existing []models.Record, items []IngestItem, cats CategoryLookup, builder RecordBuilder, sampleReasons int) IngestResult {
	res := IngestResult{
		Records:       append([]models.Record(nil), existing...),
		Rejections:    map[string]map[string]int{},
		SampleReasons: []string{},
	}

	dedup := NewDeduplicator()
	ordinal := make(map[string]int)
	ids := make(map[string]bool, len(existing))
	for i := range existing {
		_ = dedup.Admit(&existing[i])
		ordinal[existing[i].Category()]++
		ids[existing[i].ID] = true
	}

	note := func(tag string, err error) {
		byReason := res.Rejections[tag]
		if byReason == nil {
			byReason = map[string]int{}
			res.Rejections[tag] = byReason
		}
		byReason[string(ReasonOf(err))]++
		if len(res.SampleReasons) < sampleReasons {
			res.SampleReasons = append(res.SampleReasons, tag+": "+err.Error())
		}
	}

	for _, item := range items {
		tag := strings.ToLower(strings.TrimSpace(item.Category))
		info, ok := cats.Info(tag)
		if !ok {
			res.RejectedInvalid++
			note(tag, InvalidRecord(ReasonUnknownCategory, "category %q is not in the catalog", item.Category))
			continue
		}
		rec, err := builder.Build(info, models.Scenario{
			Category:      tag,
			Input:         item.Input,
			RawOutput:     item.Output,
			Layer:         item.Layer,
			ParentTrigger: item.ParentTrigger,
			EmotionLevel:  item.EmotionLevel,
			Emergency:     item.Emergency,
		})
		if err != nil {
			res.RejectedInvalid++
			note(tag, err)
			continue
		}
		if err := dedup.Admit(&rec); err != nil {
			res.RejectedDuplicate++
			note(tag, err)
			continue
		}
		for {
			rec.ID = fmt.Sprintf("%s_%d", tag, ordinal[tag])
			ordinal[tag]++
			if !ids[rec.ID] {
				break
			}
		}
		ids[rec.ID] = true
		res.Records = append(res.Records, rec)
		res.Accepted++
	}
	return res
}
