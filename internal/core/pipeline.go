package core

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// BuildState is a stage of the build state machine.
type BuildState string

const (
	StateIdle          BuildState = "idle"
	StateCollecting    BuildState = "collecting"
	StateDeduplicating BuildState = "deduplicating"
	StateIndexing      BuildState = "indexing"
	StateEmitting      BuildState = "emitting"
	StateDone          BuildState = "done"
	StateFailed        BuildState = "failed"
)

var nextState = map[BuildState]BuildState{
	StateIdle:          StateCollecting,
	StateCollecting:    StateDeduplicating,
	StateDeduplicating: StateIndexing,
	StateIndexing:      StateEmitting,
	StateEmitting:      StateDone,
}

// cancelCheckEvery is how many scenarios a worker builds between context checks.
const cancelCheckEvery = 128

// Builder runs one corpus build.
type Builder interface {
	Run(ctx context.Context) (*models.BuildSummary, error)
	State() BuildState
}

// PipelineDeps holds everything a Pipeline needs. Events and Logger are optional.
type PipelineDeps struct {
	Config *models.Config
	Source ScenarioSource
	Store  ArtifactStore
	Events EventLogger
	Logger *zap.Logger
}

// Pipeline drives Idle → Collecting → Deduplicating → Indexing → Emitting → Done.
// Any error moves it to Failed. A Pipeline runs at most once.
type Pipeline struct {
	cfg     *models.Config
	source  ScenarioSource
	store   ArtifactStore
	events  EventLogger
	log     *zap.Logger
	builder RecordBuilder
	indexer Indexer

	mu    sync.Mutex
	state BuildState
}

// NewPipeline creates a Pipeline in the Idle state.
func NewPipeline(deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:     deps.Config,
		source:  deps.Source,
		store:   deps.Store,
		events:  deps.Events,
		log:     log,
		builder: NewRecordBuilder(deps.Config.Tiles.MaxPhraseRunes, deps.Config.Quality.RejectLowInformation),
		indexer: NewIndexer(deps.Config.Indexer),
		state:   StateIdle,
	}
}

// State returns the current stage.
func (p *Pipeline) State() BuildState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) advance(to BuildState) {
	p.mu.Lock()
	from := p.state
	if nextState[from] != to {
		p.mu.Unlock()
		panic(fmt.Sprintf("illegal build transition %s -> %s", from, to))
	}
	p.state = to
	p.mu.Unlock()

	p.log.Debug("build stage", zap.String("from", string(from)), zap.String("to", string(to)))
	p.emitEvent(EventBuildStage, map[string]any{"from": string(from), "to": string(to)})
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	from := p.state
	p.state = StateFailed
	p.mu.Unlock()

	p.log.Error("build failed", zap.String("stage", string(from)), zap.Error(err))
	p.emitEvent(EventBuildFailed, map[string]any{"stage": string(from), "error": err.Error()})
}

func (p *Pipeline) emitEvent(eventType string, data map[string]any) {
	if p.events == nil {
		return
	}
	if err := p.events.LogEvent(eventType, data); err != nil {
		p.log.Warn("event log write failed", zap.String("type", eventType), zap.Error(err))
	}
}

// categoryBatch is one worker's output, kept in scenario order.
type categoryBatch struct {
	tag      string
	records  []models.Record
	rejected []rejection
}

type rejection struct {
	reason Reason
	err    error
}

// Run executes the build. Record-level problems are counted in the summary;
// only configuration, emission and cancellation errors stop the build.
func (p *Pipeline) Run(ctx context.Context) (summary *models.BuildSummary, err error) {
	if p.State() != StateIdle {
		return nil, ConfigError("pipeline already ran", nil)
	}
	defer func() {
		if err != nil {
			p.fail(err)
		}
	}()

	tags, err := p.selectTags()
	if err != nil {
		return nil, err
	}
	p.log.Info("build started",
		zap.Uint64("seed", p.cfg.Build.Seed),
		zap.Int("categories", len(tags)),
		zap.Int("workers", p.cfg.Build.Workers))
	p.emitEvent(EventBuildStarted, map[string]any{"seed": p.cfg.Build.Seed, "categories": len(tags)})

	p.advance(StateCollecting)
	batches, err := p.collect(ctx, tags)
	if err != nil {
		return nil, err
	}

	p.advance(StateDeduplicating)
	summary = &models.BuildSummary{
		Seed:             p.cfg.Build.Seed,
		Categories:       len(tags),
		ArtifactsWritten: []string{},
		Rejections:       map[string]map[string]int{},
		SampleReasons:    []string{},
		EmptyCategories:  []string{},
	}
	records := p.merge(batches, summary)
	if err := ctx.Err(); err != nil {
		return nil, Aborted(err)
	}

	p.advance(StateIndexing)
	idx := p.indexer.Build(records)
	summary.Trees = len(idx.ConversationTrees)
	summary.BuildID = buildID(p.cfg.Build.Seed, records)
	if err := ctx.Err(); err != nil {
		return nil, Aborted(err)
	}

	p.advance(StateEmitting)
	written, err := p.emit(ctx, summary.BuildID, records, idx)
	if err != nil {
		return nil, err
	}
	summary.ArtifactsWritten = written

	p.advance(StateDone)
	p.log.Info("build completed",
		zap.String("build_id", summary.BuildID),
		zap.Int("accepted", summary.Accepted),
		zap.Int("rejected_invalid", summary.RejectedInvalid),
		zap.Int("rejected_duplicate", summary.RejectedDuplicate),
		zap.Int("trees", summary.Trees))
	p.emitEvent(EventBuildCompleted, map[string]any{
		"build_id":           summary.BuildID,
		"accepted":           summary.Accepted,
		"rejected_invalid":   summary.RejectedInvalid,
		"rejected_duplicate": summary.RejectedDuplicate,
		"trees":              summary.Trees,
		"empty_categories":   len(summary.EmptyCategories),
	})
	return summary, nil
}

// selectTags returns the sorted categories to build. Requesting a tag the
// catalog does not know is a configuration error.
func (p *Pipeline) selectTags() ([]string, error) {
	known := p.source.Tags()
	if len(p.cfg.Build.Categories) == 0 {
		tags := append([]string(nil), known...)
		sort.Strings(tags)
		return tags, nil
	}
	set := make(map[string]bool, len(known))
	for _, t := range known {
		set[t] = true
	}
	var missing []string
	chosen := make(map[string]bool)
	for _, t := range p.cfg.Build.Categories {
		if !set[t] {
			missing = append(missing, t)
			continue
		}
		chosen[t] = true
	}
	if len(missing) > 0 {
		return nil, ConfigError(fmt.Sprintf("unknown categories: %s", strings.Join(missing, ", ")), nil)
	}
	tags := make([]string, 0, len(chosen))
	for t := range chosen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

// collect generates and validates every category concurrently. Each worker
// writes its own slot, so the merged result does not depend on scheduling.
func (p *Pipeline) collect(ctx context.Context, tags []string) ([]categoryBatch, error) {
	batches := make([]categoryBatch, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Build.Workers)

	for i, tag := range tags {
		g.Go(func() error {
			info, ok := p.source.Info(tag)
			if !ok {
				return ConfigError(fmt.Sprintf("category %s vanished from catalog", tag), nil)
			}
			scenarios, err := p.source.Generate(gctx, tag, p.cfg.Build.Seed)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return Aborted(ctxErr)
				}
				return ConfigError(fmt.Sprintf("generating %s", tag), err)
			}

			batch := categoryBatch{tag: tag, records: make([]models.Record, 0, len(scenarios))}
			for n, sc := range scenarios {
				if n%cancelCheckEvery == 0 {
					if err := gctx.Err(); err != nil {
						return Aborted(err)
					}
				}
				rec, err := p.builder.Build(info, sc)
				if err != nil {
					batch.rejected = append(batch.rejected, rejection{reason: ReasonOf(err), err: err})
					continue
				}
				batch.records = append(batch.records, rec)
			}
			p.log.Debug("category collected",
				zap.String("category", tag),
				zap.Int("scenarios", len(scenarios)),
				zap.Int("valid", len(batch.records)))
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Aborted(err)
	}
	return batches, nil
}

// merge deduplicates in (category, scenario) order, assigns ids and fills
// the rejection counts of the summary.
func (p *Pipeline) merge(batches []categoryBatch, summary *models.BuildSummary) []models.Record {
	dedup := NewDeduplicator()
	var out []models.Record
	ordinal := make(map[string]int)

	note := func(tag string, reason Reason, err error) {
		byReason := summary.Rejections[tag]
		if byReason == nil {
			byReason = map[string]int{}
			summary.Rejections[tag] = byReason
		}
		byReason[string(reason)]++
		if len(summary.SampleReasons) < p.cfg.Build.SampleReasons {
			summary.SampleReasons = append(summary.SampleReasons, tag+": "+err.Error())
		}
	}

	for _, b := range batches {
		for _, r := range b.rejected {
			dedup.RecordInvalid()
			note(b.tag, r.reason, r.err)
		}
		for i := range b.records {
			rec := b.records[i]
			if err := dedup.Admit(&rec); err != nil {
				note(b.tag, ReasonDuplicateOutput, err)
				continue
			}
			rec.ID = fmt.Sprintf("%s_%d", strings.ToLower(b.tag), ordinal[b.tag])
			ordinal[b.tag]++
			out = append(out, rec)
		}
		if ordinal[b.tag] == 0 {
			summary.EmptyCategories = append(summary.EmptyCategories, b.tag)
			p.log.Warn("category produced no records", zap.String("category", b.tag))
			p.emitEvent(EventBuildCategoryEmpty, map[string]any{"category": b.tag})
		}
	}

	stats := dedup.Stats()
	summary.Accepted = stats.Accepted
	summary.RejectedInvalid = stats.RejectedInvalid
	summary.RejectedDuplicate = stats.RejectedDuplicate
	return out
}

type emitStep struct {
	what  string
	write func() error
}

// emit stages every artifact and publishes them together.
func (p *Pipeline) emit(ctx context.Context, id string, records []models.Record, idx *models.TreeIndex) ([]string, error) {
	profile, err := ComposeProfile(p.cfg.Profile)
	if err != nil {
		return nil, err
	}

	txn, err := p.store.Begin(p.cfg.Build.OutputDir)
	if err != nil {
		return nil, EmissionError("opening output directory", err)
	}
	abort := func(cause error) error {
		if rbErr := txn.Rollback(); rbErr != nil {
			p.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return cause
	}

	names := p.cfg.Artifacts
	steps := []emitStep{
		{"record stream", func() error { return txn.WriteRecords(names.Records, records) }},
		{"tree index", func() error { return txn.WriteTreeIndex(names.Trees, idx) }},
		{"backend profile", func() error { return txn.WriteProfile(names.Profile, profile) }},
	}
	if p.cfg.Build.Snapshot {
		steps = append(steps, emitStep{"corpus snapshot", func() error { return txn.WriteSnapshot(names.Snapshot, id, records) }})
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, abort(Aborted(err))
		}
		if err := s.write(); err != nil {
			return nil, abort(EmissionError("writing "+s.what, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, abort(Aborted(err))
	}

	written, err := txn.Commit()
	if err != nil {
		return nil, EmissionError("publishing artifacts", err)
	}
	for i, name := range written {
		written[i] = filepath.Join(p.cfg.Build.OutputDir, name)
	}
	return written, nil
}

// buildID derives a stable identifier from the seed and the emitted records.
func buildID(seed uint64, records []models.Record) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	for i := range records {
		h.Write([]byte(records[i].ID))
		h.Write([]byte{0})
		h.Write([]byte(records[i].Input))
		h.Write([]byte{0})
		h.Write([]byte(records[i].RawOutput))
		h.Write([]byte{0})
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, h.Sum(nil)).String()
}
