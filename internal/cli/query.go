package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/core"
)

var (
	queryRecords string
	queryLimit   int
)

var queryCmd = &cobra.Command{
	Use:   "query EXPR",
	Short: "Run a jq expression over the record stream",
	Long: `Run a jq expression once per record of the record stream and print every
non-null result as one JSON line.

Examples:
  tinkybink query 'select(.aac_response.usage_data.category == "crisis") | .input'
  tinkybink query '.aac_response.tiles[].emoji' --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		q, err := core.CompileQuery(args[0])
		if err != nil {
			return err
		}
		records, err := readRawRecordsFile(orDefault(queryRecords, recordsPath))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		n := 0
		return q.Run(cmd.Context(), records, func(v any) error {
			if queryLimit > 0 && n == queryLimit {
				return core.ErrStopQuery
			}
			n++
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}
			return nil
		})
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryRecords, "records", "", "Record stream to query (default: the build output)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Stop after this many results (0 = no limit)")
	rootCmd.AddCommand(queryCmd)
}
