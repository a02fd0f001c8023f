package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// annotationNoSetup marks commands that run without loading configuration.
const annotationNoSetup = "tinkybink/no-setup"

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tinkybink",
	Short: "TinkyBink AAC corpus engine",
	Long: `TinkyBink generates the training corpus of a four-tile AAC assistant.

A build turns every catalog category into validated, deduplicated records,
links them into drill-down conversation trees up to four layers deep, and
writes the record stream, the tree index and the backend profile together.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupCommand,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = Logger.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationNoSetup: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tinkybink %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func setupCommand(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	Logger = logger
	if cmd.Annotations[annotationNoSetup] == "true" || Setup == nil {
		return nil
	}
	return Setup(configFile, logger)
}

// newLogger writes JSON logs to stderr, keeping stdout for command output.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a tinkybink.yaml file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if Teardown != nil {
		if cerr := Teardown(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
