package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/storage"
)

var (
	ingestRecords string
	ingestOut     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Validate external input/output pairs and append them to a record stream",
	Long: `Read scenarios from FILE ("-" for stdin) as a JSON array or one JSON
object per line, each {category, input, output}. Malformed JSON is repaired
when possible. Items go through the same validation and deduplication as a
build, against the existing record stream, and the accepted ones are appended.

The result is written atomically to --out (default: replace --records).
Run "tinkybink reindex" afterwards to refresh the tree index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		items, err := core.DecodeIngestItems(data)
		if err != nil {
			return err
		}

		source := orDefault(ingestRecords, recordsPath)
		existing, err := readRecordsFile(source)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		builder := core.NewRecordBuilder(Config.Tiles.MaxPhraseRunes, Config.Quality.RejectLowInformation)
		res := core.Ingest(existing, items, Catalog, builder, Config.Build.SampleReasons)
		Logger.Info("ingest finished",
			zap.Int("items", len(items)),
			zap.Int("accepted", res.Accepted),
			zap.Int("rejected_invalid", res.RejectedInvalid),
			zap.Int("rejected_duplicate", res.RejectedDuplicate))

		dest := orDefault(ingestOut, func() string { return source })
		if err := storage.WriteFileAtomic(dest, func(w io.Writer) error {
			return storage.WriteRecords(w, res.Records)
		}); err != nil {
			return core.EmissionError("writing record stream", err)
		}
		if Events != nil {
			if err := Events.LogEvent("ingest.completed", map[string]any{
				"accepted":           res.Accepted,
				"rejected_invalid":   res.RejectedInvalid,
				"rejected_duplicate": res.RejectedDuplicate,
				"records":            len(res.Records),
			}); err != nil {
				Logger.Warn("event log write failed", zap.Error(err))
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing ingest summary: %w", err)
		}
		narrate(cmd.ErrOrStderr(), okStyle, "Accepted %d of %d items; %s now holds %d records", res.Accepted, len(items), dest, len(res.Records))
		return nil
	},
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRecords, "records", "", "Existing record stream (default: the build output)")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "Where to write the merged stream (default: --records)")
	rootCmd.AddCommand(ingestCmd)
}

