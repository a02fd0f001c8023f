package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	tbmcp "github.com/valter-silva-au/tinkybink/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the TinkyBink MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TinkyBink MCP server on stdio",
	Long: `Start the TinkyBink MCP server on stdio transport.

The server exposes the catalog and the last build as tools: list_categories,
lookup_tiles, follow_ups, get_profile, query_records, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		srv := tbmcp.NewServer(tbmcp.Deps{
			Catalog:   Catalog,
			Artifacts: fileArtifacts{records: recordsPath(), trees: treesPath()},
			Profile:   Config.Profile,
			Metrics:   MetricsCalc,
			Alerts:    AlertEngine,
		}, appVersion)

		if err := srv.Run(cmd.Context()); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
