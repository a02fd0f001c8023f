package core

import (
	"strconv"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// DedupStats counts what the deduplicator saw.
type DedupStats struct {
	Accepted          int
	RejectedInvalid   int
	RejectedDuplicate int
}

// Deduplicator admits records whose normalized raw output has not been seen.
// The first occurrence wins. It is not safe for concurrent use; the pipeline
// feeds it in deterministic merge order.
type Deduplicator struct {
	seen  map[string]string
	stats DedupStats
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]string)}
}

// Admit accepts rec or returns a duplicate_record error naming the first
// record that produced the same output.
func (d *Deduplicator) Admit(rec *models.Record) error {
	key := Normalize(rec.RawOutput)
	if first, ok := d.seen[key]; ok {
		d.stats.RejectedDuplicate++
		return &Error{
			Kind:    KindDuplicateRecord,
			Reason:  ReasonDuplicateOutput,
			Message: "output of " + rec.Category() + " " + strconv.Quote(rec.Input) + " already produced by " + first,
		}
	}
	d.seen[key] = rec.Category() + " " + strconv.Quote(rec.Input)
	d.stats.Accepted++
	return nil
}

// Seen reports whether an equivalent output was already admitted.
func (d *Deduplicator) Seen(raw string) bool {
	_, ok := d.seen[Normalize(raw)]
	return ok
}

// RecordInvalid counts a record rejected before deduplication.
func (d *Deduplicator) RecordInvalid() { d.stats.RejectedInvalid++ }

// Stats returns the running counts.
func (d *Deduplicator) Stats() DedupStats { return d.stats }

// Deduplicate filters records in order, keeping the first of each output.
func Deduplicate(records []models.Record) ([]models.Record, DedupStats) {
	d := NewDeduplicator()
	out := make([]models.Record, 0, len(records))
	for i := range records {
		if d.Admit(&records[i]) == nil {
			out = append(out, records[i])
		}
	}
	return out, d.Stats()
}
