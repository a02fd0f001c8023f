package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/core"
)

var (
	validateTrees string
	validateJSON  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Re-check every record guarantee of a record stream",
	Long: `Re-check an existing record stream: four tiles per record, non-empty
and unique phrases, the raw output parsing back to the same tiles, emoji
recovery, layer bounds, emotion flags and output uniqueness across the file.

When the tree index exists (or --trees is given) its depth bound and
references are checked as well. Exits with status 1 if anything is violated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		path := recordsPath()
		if len(args) == 1 {
			path = args[0]
		}
		records, err := readRecordsFile(path)
		if err != nil {
			return err
		}
		violations := core.CheckCorpus(records, Config.Tiles.MaxPhraseRunes)

		trees := validateTrees
		if trees == "" && len(args) == 0 {
			trees = treesPath()
		}
		if trees != "" {
			idx, err := readTreeIndexFile(trees)
			switch {
			case err == nil:
				violations = append(violations, core.CheckTreeIndex(idx)...)
			case validateTrees == "" && errors.Is(err, os.ErrNotExist):
			default:
				return err
			}
		}

		out := cmd.OutOrStdout()
		if validateJSON {
			if violations == nil {
				violations = []core.Violation{}
			}
			enc := json.NewEncoder(out)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(violations); err != nil {
				return fmt.Errorf("writing violations: %w", err)
			}
		} else {
			for _, v := range violations {
				fmt.Fprintln(out, v.String())
			}
		}

		if len(violations) > 0 {
			narrate(cmd.ErrOrStderr(), errStyle, "%d violations in %d records", len(violations), len(records))
			return fmt.Errorf("%s: %d violations found", path, len(violations))
		}
		narrate(cmd.ErrOrStderr(), okStyle, "%d records valid", len(records))
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateTrees, "trees", "", "Tree index to check as well")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output violations as JSON")
	rootCmd.AddCommand(validateCmd)
}
