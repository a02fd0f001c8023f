package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/core"
)

var (
	buildSeed       uint64
	buildOut        string
	buildWorkers    int
	buildCategories []string
	buildSnapshot   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the record stream, tree index and backend profile",
	Long: `Generate the full corpus in one pass.

Every selected category is expanded into scenarios, validated and
deduplicated, linked into conversation trees, and written to the output
directory together with the backend profile. The artifacts are published
only when all of them were written; on failure the previous files remain.

The build summary is printed to stdout as JSON.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, _ []string) error {
	if err := requireApp(); err != nil {
		return err
	}
	if Store == nil {
		return fmt.Errorf("artifact store not initialized")
	}

	cfg := *Config
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Build.Seed = buildSeed
	}
	if flags.Changed("out") {
		cfg.Build.OutputDir = buildOut
	}
	if flags.Changed("workers") {
		cfg.Build.Workers = buildWorkers
	}
	if flags.Changed("category") {
		cfg.Build.Categories = make([]string, 0, len(buildCategories))
		for _, c := range buildCategories {
			cfg.Build.Categories = append(cfg.Build.Categories, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	if flags.Changed("snapshot") {
		cfg.Build.Snapshot = buildSnapshot
	}
	if ConfigMgr != nil {
		if err := ConfigMgr.ValidateConfig(&cfg); err != nil {
			return err
		}
	}

	stderr := cmd.ErrOrStderr()
	scope := "all categories"
	if n := len(cfg.Build.Categories); n > 0 {
		scope = fmt.Sprintf("%d categories", n)
	}
	narrate(stderr, headerStyle, "Building %s (seed %d, %d workers)", scope, cfg.Build.Seed, cfg.Build.Workers)

	pipeline := core.NewPipeline(core.PipelineDeps{
		Config: &cfg,
		Source: Catalog,
		Store:  Store,
		Events: Events,
		Logger: Logger,
	})
	summary, err := pipeline.Run(cmd.Context())
	if err != nil {
		narrate(stderr, errStyle, "Build failed: %v", err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("writing build summary: %w", err)
	}

	narrate(stderr, okStyle, "%d records in %d trees, %d rejected", summary.Accepted, summary.Trees, summary.RejectedInvalid+summary.RejectedDuplicate)
	for _, path := range summary.ArtifactsWritten {
		narrate(stderr, mutedStyle, "  wrote %s", path)
	}
	if len(summary.EmptyCategories) > 0 {
		narrate(stderr, warnStyle, "Categories without records: %s", strings.Join(summary.EmptyCategories, ", "))
	}
	return nil
}

func init() {
	buildCmd.Flags().Uint64Var(&buildSeed, "seed", 0, "Seed for sampled template categories")
	buildCmd.Flags().StringVar(&buildOut, "out", "", "Output directory")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "Number of categories generated in parallel")
	buildCmd.Flags().StringSliceVar(&buildCategories, "category", nil, "Restrict the build to these categories (repeatable)")
	buildCmd.Flags().BoolVar(&buildSnapshot, "snapshot", false, "Also write the msgpack corpus snapshot")
	rootCmd.AddCommand(buildCmd)
}
