package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valter-silva-au/tinkybink/internal/catalog"
	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/storage"
	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// --- Helpers ---

// dirStore stages artifacts in a real directory.
type dirStore struct{}

func (dirStore) Begin(dir string) (core.ArtifactTxn, error) {
	set, err := storage.NewArtifactSet(dir)
	if err != nil {
		return nil, err
	}
	return dirTxn{set}, nil
}

type dirTxn struct{ set *storage.ArtifactSet }

func (t dirTxn) WriteRecords(name string, records []models.Record) error {
	return t.set.Stage(name, func(w io.Writer) error { return storage.WriteRecords(w, records) })
}

func (t dirTxn) WriteTreeIndex(name string, idx *models.TreeIndex) error {
	return t.set.Stage(name, func(w io.Writer) error { return storage.WriteTreeIndex(w, idx) })
}

func (t dirTxn) WriteProfile(name string, profile string) error {
	return t.set.Stage(name, func(w io.Writer) error {
		_, err := io.WriteString(w, profile)
		return err
	})
}

func (t dirTxn) WriteSnapshot(name string, buildID string, records []models.Record) error {
	return t.set.Stage(name, func(w io.Writer) error { return storage.WriteSnapshot(w, buildID, records) })
}

func (t dirTxn) Commit() ([]string, error) { return t.set.Commit() }
func (t dirTxn) Rollback() error           { return t.set.Rollback() }

func testCatalog(t *testing.T) *catalog.Registry {
	t.Helper()
	reg := catalog.NewRegistry()
	cats := []*catalog.Category{
		{
			CategoryInfo: models.CategoryInfo{Tag: "crisis", Instruction: "AAC Crisis", EmotionLevel: models.EmotionHigh, ContentWarning: true, Weight: 1},
			Generators: []catalog.Generator{&catalog.TableGenerator{Rows: []models.Scenario{
				{Input: "I want to hurt myself right now", RawOutput: "🆘 Immediate help needed, 📞 Call crisis hotline, 🏥 Go to emergency room, 🤲 Stay with someone", Emergency: true},
			}}},
		},
		{
			CategoryInfo: models.CategoryInfo{Tag: "food_ordering", Instruction: "AAC Food Ordering", EmotionLevel: models.EmotionMedium, Weight: 0.8},
			Generators: []catalog.Generator{&catalog.TableGenerator{Rows: []models.Scenario{
				{Input: "Want pizza", RawOutput: "🍕 Pizza, 🍔 Burger, 🌮 Tacos, 🍗 Chicken"},
				{Input: "Pizza chosen! What toppings?", RawOutput: "🍄 Mushrooms, 🥓 Bacon, 🧄 Pepperoni, 🧀 Extra cheese", Layer: 2, ParentTrigger: "Pizza"},
				{Input: "Hungry now", RawOutput: "🍕 Pizza, 🍔 Burger, 🌮 Tacos, 🍗 Chicken"},
				{Input: "Snack?", RawOutput: "🍪 Cookie"},
			}}},
		},
	}
	for _, c := range cats {
		if err := reg.Register(c); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

// withApp installs a test application and restores the package state after
// the test.
func withApp(t *testing.T) *models.Config {
	t.Helper()
	origConfig, origCatalog, origStore, origMgr := Config, Catalog, Store, ConfigMgr
	origEvents, origMetrics, origAlerts := Events, MetricsCalc, AlertEngine
	origSetup, origTeardown := Setup, Teardown
	t.Cleanup(func() {
		Config, Catalog, Store, ConfigMgr = origConfig, origCatalog, origStore, origMgr
		Events, MetricsCalc, AlertEngine = origEvents, origMetrics, origAlerts
		Setup, Teardown = origSetup, origTeardown
	})

	cfg := core.DefaultConfig()
	cfg.Build.OutputDir = t.TempDir()
	Config = cfg
	Catalog = testCatalog(t)
	Store = dirStore{}
	ConfigMgr = nil
	Events, MetricsCalc, AlertEngine = nil, nil, nil
	Setup, Teardown = nil, nil
	return cfg
}

// resetFlags returns every flag of cmd and its children to its default so
// values do not leak between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runWithInput(t, "", args...)
}

func runWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return stdout.String(), stderr.String(), err
}

// mustBuild runs a full build into the test output directory.
func mustBuild(t *testing.T) {
	t.Helper()
	if _, stderr, err := run(t, "build"); err != nil {
		t.Fatalf("build: %v\n%s", err, stderr)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
