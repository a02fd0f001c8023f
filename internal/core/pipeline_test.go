package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// --- Fakes ---

type fakeSource struct {
	infos     map[string]models.CategoryInfo
	scenarios map[string][]models.Scenario
}

func newFakeSource() *fakeSource {
	return &fakeSource{infos: map[string]models.CategoryInfo{}, scenarios: map[string][]models.Scenario{}}
}

func (f *fakeSource) add(info models.CategoryInfo, scenarios ...models.Scenario) *fakeSource {
	if info.Weight == 0 {
		info.Weight = 1
	}
	if info.EmotionLevel == "" {
		info.EmotionLevel = models.EmotionMedium
	}
	f.infos[info.Tag] = info
	f.scenarios[info.Tag] = append(f.scenarios[info.Tag], scenarios...)
	return f
}

func (f *fakeSource) Tags() []string {
	tags := make([]string, 0, len(f.infos))
	for t := range f.infos {
		tags = append(tags, t)
	}
	return tags
}

func (f *fakeSource) Info(tag string) (models.CategoryInfo, bool) {
	info, ok := f.infos[tag]
	return info, ok
}

func (f *fakeSource) Generate(ctx context.Context, tag string, _ uint64) ([]models.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Scenario, len(f.scenarios[tag]))
	copy(out, f.scenarios[tag])
	for i := range out {
		out[i].Category = tag
	}
	return out, nil
}

type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	failOn    string
	rolled    bool
	committed bool
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (m *memStore) Begin(string) (ArtifactTxn, error) {
	return &memTxn{store: m, staged: map[string][]byte{}}, nil
}

type memTxn struct {
	store  *memStore
	staged map[string][]byte
	order  []string
}

func (t *memTxn) stage(name string, data []byte) error {
	if t.store.failOn == name {
		return errors.New("disk full")
	}
	t.staged[name] = data
	t.order = append(t.order, name)
	return nil
}

func (t *memTxn) WriteRecords(name string, records []models.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return err
		}
	}
	return t.stage(name, buf.Bytes())
}

func (t *memTxn) WriteTreeIndex(name string, idx *models.TreeIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return t.stage(name, data)
}

func (t *memTxn) WriteProfile(name, profile string) error { return t.stage(name, []byte(profile)) }

func (t *memTxn) WriteSnapshot(name, buildID string, records []models.Record) error {
	return t.stage(name, []byte(buildID))
}

func (t *memTxn) Commit() ([]string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for name, data := range t.staged {
		t.store.files[name] = data
	}
	t.store.committed = true
	return t.order, nil
}

func (t *memTxn) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.staged = nil
	t.store.rolled = true
	return nil
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

// --- Helpers ---

func testConfig() *models.Config {
	cfg := DefaultConfig()
	cfg.Build.OutputDir = "out"
	return cfg
}

func sampleSource() *fakeSource {
	src := newFakeSource()
	src.add(models.CategoryInfo{Tag: "medical", Instruction: "AAC Medical", Preamble: "Medically"},
		models.Scenario{Input: "I feel sick today", RawOutput: "🤒 Body rebellion starting, 🌡️ System malfunction detected, 🦠 Invaders winning currently, 🏥 Medical thoughts growing"},
		models.Scenario{Input: "Happy?", RawOutput: "😊 Happy"},
	)
	src.add(models.CategoryInfo{Tag: "food_ordering", Instruction: "AAC Food Ordering"},
		models.Scenario{Input: "Want pizza", RawOutput: "🍕 Pizza, 🍔 Burger, 🌮 Tacos, 🍗 Chicken"},
		models.Scenario{Input: "Pizza chosen! What toppings?", RawOutput: "🍄 Mushrooms, 🥓 Bacon, 🧄 Pepperoni, 🧀 Extra cheese", Layer: 2, ParentTrigger: "Pizza"},
	)
	src.add(models.CategoryInfo{Tag: "crisis", Instruction: "AAC Crisis", EmotionLevel: models.EmotionHigh, ContentWarning: true},
		models.Scenario{Input: "I want to hurt myself right now", RawOutput: "🆘 Immediate help needed, 📞 Call crisis hotline, 🏥 Go to emergency room, 🤲 Stay with someone", Emergency: true},
	)
	src.add(models.CategoryInfo{Tag: "greetings"},
		models.Scenario{Input: "Hello & welcome", RawOutput: "👋 Hi there, 😊 Good morning, 🤗 Nice to see you, 👍 All good"},
	)
	src.add(models.CategoryInfo{Tag: "social"},
		models.Scenario{Input: "Hi", RawOutput: "👋 Hi there, 😊 Good morning, 🤗 Nice to see you, 👍 All good"},
	)
	return src
}

func decodeStream(t *testing.T, data []byte) []models.Record {
	t.Helper()
	var out []models.Record
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var r models.Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		out = append(out, r)
	}
	return out
}

func runPipeline(t *testing.T, cfg *models.Config, src ScenarioSource, store *memStore) *models.BuildSummary {
	t.Helper()
	p := NewPipeline(PipelineDeps{Config: cfg, Source: src, Store: store})
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.State() != StateDone {
		t.Errorf("State = %s, want done", p.State())
	}
	return summary
}

// --- Run tests ---

func TestPipeline_SummaryCounts(t *testing.T) {
	store := newMemStore()
	summary := runPipeline(t, testConfig(), sampleSource(), store)

	if summary.Categories != 5 {
		t.Errorf("Categories = %d, want 5", summary.Categories)
	}
	if summary.Accepted != 5 {
		t.Errorf("Accepted = %d, want 5", summary.Accepted)
	}
	if summary.RejectedInvalid != 1 {
		t.Errorf("RejectedInvalid = %d, want 1", summary.RejectedInvalid)
	}
	if summary.RejectedDuplicate != 1 {
		t.Errorf("RejectedDuplicate = %d, want 1", summary.RejectedDuplicate)
	}
	if got := summary.Rejections["medical"]["InsufficientTiles"]; got != 1 {
		t.Errorf("medical InsufficientTiles = %d, want 1", got)
	}
	if got := summary.Rejections["social"]["DuplicateOutput"]; got != 1 {
		t.Errorf("social DuplicateOutput = %d, want 1", got)
	}
	if diff := cmp.Diff([]string{"social"}, summary.EmptyCategories); diff != "" {
		t.Errorf("EmptyCategories mismatch (-want +got):\n%s", diff)
	}
	if summary.Trees != 4 {
		t.Errorf("Trees = %d, want 4", summary.Trees)
	}
	if summary.BuildID == "" {
		t.Error("BuildID is empty")
	}
	want := []string{"out/tinkybink_records.jsonl", "out/tinkybink_trees.json", "out/Modelfile"}
	if diff := cmp.Diff(want, summary.ArtifactsWritten); diff != "" {
		t.Errorf("ArtifactsWritten mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_RecordStream(t *testing.T) {
	store := newMemStore()
	runPipeline(t, testConfig(), sampleSource(), store)
	records := decodeStream(t, store.files["tinkybink_records.jsonl"])

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	want := []string{"crisis_0", "food_ordering_0", "food_ordering_1", "greetings_0", "medical_0"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	medical := records[4]
	if medical.AACResponse.Tiles[0].Emoji != "🤒" || medical.AACResponse.Tiles[0].Words != "Body rebellion starting" {
		t.Errorf("medical first tile = %+v", medical.AACResponse.Tiles[0])
	}
	if medical.AACResponse.UsageData.EmotionLevel != models.EmotionMedium {
		t.Errorf("medical emotion = %s", medical.AACResponse.UsageData.EmotionLevel)
	}
	if !strings.HasPrefix(medical.AACResponse.SpokenSentence, "Medically, I ") {
		t.Errorf("spoken = %q", medical.AACResponse.SpokenSentence)
	}

	crisis := records[0]
	if crisis.Input != "I want to hurt myself right now" {
		t.Errorf("crisis input = %q", crisis.Input)
	}
	if crisis.AACResponse.UsageData.EmotionLevel != models.EmotionHigh || !crisis.AACResponse.UsageData.ContentWarning {
		t.Errorf("crisis usage = %+v", crisis.AACResponse.UsageData)
	}
	if violations := CheckCorpus(records, 40); len(violations) != 0 {
		t.Errorf("violations = %v", violations)
	}
}

func TestPipeline_KeyOrder(t *testing.T) {
	store := newMemStore()
	runPipeline(t, testConfig(), sampleSource(), store)
	line := strings.SplitN(string(store.files["tinkybink_records.jsonl"]), "\n", 2)[0]

	keys := []string{`"instruction"`, `"input"`, `"aac_response"`, `"tiles"`, `"spoken_sentence"`, `"usage_data"`, `"raw_output"`, `"id"`}
	last := -1
	for _, k := range keys {
		pos := strings.Index(line, k)
		if pos <= last {
			t.Fatalf("key %s out of order in %s", k, line)
		}
		last = pos
	}
	stream := string(store.files["tinkybink_records.jsonl"])
	if !strings.Contains(stream, `"input":"Hello & welcome"`) || strings.Contains(stream, `\u0026`) {
		t.Error("HTML escaping must be disabled")
	}
}

func TestPipeline_TreeLinksPizza(t *testing.T) {
	store := newMemStore()
	runPipeline(t, testConfig(), sampleSource(), store)

	var idx models.TreeIndex
	if err := json.Unmarshal(store.files["tinkybink_trees.json"], &idx); err != nil {
		t.Fatalf("decoding tree index: %v", err)
	}
	node, ok := idx.Node("food_ordering_0")
	if !ok {
		t.Fatal("food_ordering_0 missing from tree index")
	}
	found := false
	for _, f := range node.FollowUps {
		target, ok := idx.Node(f.NextRecordRef)
		if ok && target.Layer == 2 && strings.Contains(strings.ToLower(target.Record.Input), strings.ToLower(f.TriggerPhrase)) {
			found = true
		}
	}
	if !found {
		t.Errorf("no layer-2 follow-up for Want pizza: %+v", node.FollowUps)
	}
}

func TestPipeline_DeterministicAcrossWorkers(t *testing.T) {
	var streams [][]byte
	var ids []string
	for _, workers := range []int{1, 3, 8} {
		cfg := testConfig()
		cfg.Build.Workers = workers
		store := newMemStore()
		summary := runPipeline(t, cfg, sampleSource(), store)
		streams = append(streams, store.files["tinkybink_records.jsonl"])
		ids = append(ids, summary.BuildID)
	}
	for i := 1; i < len(streams); i++ {
		if !bytes.Equal(streams[0], streams[i]) {
			t.Errorf("stream %d differs from stream 0", i)
		}
		if ids[0] != ids[i] {
			t.Errorf("build id %d = %s, want %s", i, ids[i], ids[0])
		}
	}
}

func TestPipeline_CategorySubset(t *testing.T) {
	cfg := testConfig()
	cfg.Build.Categories = []string{"medical", "crisis", "medical"}
	store := newMemStore()
	summary := runPipeline(t, cfg, sampleSource(), store)
	if summary.Categories != 2 || summary.Accepted != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestPipeline_UnknownCategory(t *testing.T) {
	cfg := testConfig()
	cfg.Build.Categories = []string{"medical", "quantum_cooking"}
	p := NewPipeline(PipelineDeps{Config: cfg, Source: sampleSource(), Store: newMemStore()})
	_, err := p.Run(context.Background())
	if !IsConfigError(err) {
		t.Fatalf("err = %v, want config_error", err)
	}
	if ExitCode(err) != ExitConfig {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitConfig)
	}
	if p.State() != StateFailed {
		t.Errorf("State = %s, want failed", p.State())
	}
}

func TestPipeline_EmissionFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.failOn = "Modelfile"
	events := &recordingEvents{}
	p := NewPipeline(PipelineDeps{Config: testConfig(), Source: sampleSource(), Store: store, Events: events})

	_, err := p.Run(context.Background())
	if !IsEmissionError(err) {
		t.Fatalf("err = %v, want emission_error", err)
	}
	if ExitCode(err) != ExitIO {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitIO)
	}
	if !store.rolled || store.committed {
		t.Errorf("rolled = %v committed = %v, want rollback only", store.rolled, store.committed)
	}
	if len(store.files) != 0 {
		t.Errorf("files published after failure: %v", store.files)
	}
	if last := events.types[len(events.types)-1]; last != EventBuildFailed {
		t.Errorf("last event = %s, want %s", last, EventBuildFailed)
	}
}

func TestPipeline_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newMemStore()
	p := NewPipeline(PipelineDeps{Config: testConfig(), Source: sampleSource(), Store: store})

	_, err := p.Run(ctx)
	if !IsAborted(err) {
		t.Fatalf("err = %v, want aborted", err)
	}
	if ExitCode(err) != ExitAborted {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitAborted)
	}
	if store.committed || len(store.files) != 0 {
		t.Error("no artifacts may be published after cancellation")
	}
}

func TestPipeline_RunsOnce(t *testing.T) {
	p := NewPipeline(PipelineDeps{Config: testConfig(), Source: sampleSource(), Store: newMemStore()})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := p.Run(context.Background()); err == nil {
		t.Error("second run should fail")
	}
}

func TestPipeline_EventSequence(t *testing.T) {
	events := &recordingEvents{}
	p := NewPipeline(PipelineDeps{Config: testConfig(), Source: sampleSource(), Store: newMemStore(), Events: events})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	counts := map[string]int{}
	for _, e := range events.types {
		counts[e]++
	}
	if counts[EventBuildStarted] != 1 || counts[EventBuildCompleted] != 1 {
		t.Errorf("events = %v", events.types)
	}
	if counts[EventBuildStage] != 5 {
		t.Errorf("stage events = %d, want 5", counts[EventBuildStage])
	}
	if counts[EventBuildCategoryEmpty] != 1 {
		t.Errorf("category_empty events = %d, want 1", counts[EventBuildCategoryEmpty])
	}
}

func TestPipeline_SnapshotOptIn(t *testing.T) {
	cfg := testConfig()
	cfg.Build.Snapshot = true
	store := newMemStore()
	summary := runPipeline(t, cfg, sampleSource(), store)
	if string(store.files["tinkybink_corpus.msgpack"]) != summary.BuildID {
		t.Error("snapshot not staged with the build id")
	}
	names := append([]string(nil), summary.ArtifactsWritten...)
	sort.Strings(names)
	if len(names) != 4 {
		t.Errorf("ArtifactsWritten = %v, want 4 entries", names)
	}
}

func TestPipeline_SampleReasonsCapped(t *testing.T) {
	src := newFakeSource()
	var bad []models.Scenario
	for i := 0; i < 20; i++ {
		bad = append(bad, models.Scenario{Input: "x", RawOutput: "😊 Only one"})
	}
	src.add(models.CategoryInfo{Tag: "broken"}, bad...)
	cfg := testConfig()
	cfg.Build.SampleReasons = 3

	summary := runPipeline(t, cfg, src, newMemStore())
	if summary.RejectedInvalid != 20 {
		t.Errorf("RejectedInvalid = %d, want 20", summary.RejectedInvalid)
	}
	if len(summary.SampleReasons) != 3 {
		t.Errorf("SampleReasons = %d, want 3", len(summary.SampleReasons))
	}
}
