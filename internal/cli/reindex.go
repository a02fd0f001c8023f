package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/storage"
)

var (
	reindexRecords string
	reindexOut     string
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the tree index from a record stream",
	Long: `Rebuild the conversation tree index from an existing record stream without
regenerating the corpus, e.g. after "tinkybink ingest".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		records, err := readRecordsFile(orDefault(reindexRecords, recordsPath))
		if err != nil {
			return err
		}
		if err := cmd.Context().Err(); err != nil {
			return core.Aborted(err)
		}

		idx := core.NewIndexer(Config.Indexer).Build(records)
		dest := orDefault(reindexOut, treesPath)
		if err := storage.WriteFileAtomic(dest, func(w io.Writer) error {
			return storage.WriteTreeIndex(w, idx)
		}); err != nil {
			return core.EmissionError("writing tree index", err)
		}
		narrate(cmd.ErrOrStderr(), okStyle, "Indexed %d records into %d trees in %s", len(records), idx.TotalCategories, dest)
		return nil
	},
}

func init() {
	reindexCmd.Flags().StringVar(&reindexRecords, "records", "", "Record stream to index (default: the build output)")
	reindexCmd.Flags().StringVarP(&reindexOut, "out", "o", "", "Where to write the tree index (default: the build output)")
	rootCmd.AddCommand(reindexCmd)
}
