package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	tbmcp "github.com/valter-silva-au/tinkybink/internal/mcp"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display build metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include build counts, accepted and rejected record totals across
completed builds, ingested records, and failures by stage.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Builds started:", metrics.BuildsStarted)
		fmt.Fprintf(out, "  %-24s %d\n", "Builds completed:", metrics.BuildsCompleted)
		fmt.Fprintf(out, "  %-24s %d\n", "Builds failed:", metrics.BuildsFailed)
		fmt.Fprintf(out, "  %-24s %d\n", "Records accepted:", metrics.RecordsAccepted)
		fmt.Fprintf(out, "  %-24s %d\n", "Rejected (invalid):", metrics.RejectedInvalid)
		fmt.Fprintf(out, "  %-24s %d\n", "Rejected (duplicate):", metrics.RejectedDuplicate)
		fmt.Fprintf(out, "  %-24s %.1f%%\n", "Rejection ratio:", metrics.RejectionRatio()*100)
		fmt.Fprintf(out, "  %-24s %d\n", "Ingested records:", metrics.IngestedRecords)
		fmt.Fprintf(out, "  %-24s %d\n", "Empty categories:", metrics.EmptyCategories)
		if metrics.LastBuildID != "" {
			fmt.Fprintf(out, "  %-24s %s\n", "Last build:", metrics.LastBuildID)
		}

		if len(metrics.FailuresByStage) > 0 {
			fmt.Fprintln(out, "\n  Failures by stage:")
			stages := make([]string, 0, len(metrics.FailuresByStage))
			for stage := range metrics.FailuresByStage {
				stages = append(stages, stage)
			}
			sort.Strings(stages)
			for _, stage := range stages {
				fmt.Fprintf(out, "    %-20s %d\n", stage+":", metrics.FailuresByStage[stage])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a duration like "7d" or "24h" into a point in
// the past. An empty string means the last seven days.
func parseSinceDuration(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC().AddDate(0, 0, -7), nil
	}
	return tbmcp.ParseSince(s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
