package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/catalog"
)

var catalogJSON bool

type catalogEntry struct {
	Tag            string  `json:"tag"`
	Instruction    string  `json:"instruction"`
	EmotionLevel   string  `json:"emotion_level"`
	ContentWarning bool    `json:"content_warning"`
	Weight         float64 `json:"weight"`
	Scenarios      int     `json:"scenarios"`
	Extension      bool    `json:"extension,omitempty"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the category catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every category with its emotion level and scenario count",
	Long: `List every category known to the catalog, including categories added
through catalog.data_dir. Scenario counts use the configured build seed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		var entries []catalogEntry
		for _, tag := range Catalog.Tags() {
			info, _ := Catalog.Info(tag)
			scenarios, err := Catalog.Generate(cmd.Context(), tag, Config.Build.Seed)
			if err != nil {
				return fmt.Errorf("counting scenarios of %s: %w", tag, err)
			}
			entries = append(entries, catalogEntry{
				Tag:            tag,
				Instruction:    info.Instruction,
				EmotionLevel:   string(info.EmotionLevel),
				ContentWarning: info.ContentWarning,
				Weight:         info.Weight,
				Scenarios:      len(scenarios),
				Extension:      catalog.IsExtension(tag) || !catalog.IsKnownTag(tag),
			})
		}

		out := cmd.OutOrStdout()
		if catalogJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("TAG", "EMOTION", "WARNING", "WEIGHT", "SCENARIOS")
		total := 0
		for _, e := range entries {
			warning := ""
			if e.ContentWarning {
				warning = "yes"
			}
			tag := e.Tag
			if e.Extension {
				tag += " *"
			}
			t.Row(tag, e.EmotionLevel, warning, strconv.FormatFloat(e.Weight, 'f', -1, 64), strconv.Itoa(e.Scenarios))
			total += e.Scenarios
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintf(out, "%d categories, %d scenarios (* = extension or data_dir category)\n", len(entries), total)
		return nil
	},
}

func init() {
	catalogListCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output the catalog as JSON")
	catalogCmd.AddCommand(catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}
