package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/observability"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show build health alerts",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts fire when the last build failed, when its rejection ratio or empty
category count is over the configured threshold, or when no build has
completed recently.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, okStyle.Render("No active alerts."))
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := severityStyle(alert.Severity).Render("[" + strings.ToUpper(string(alert.Severity)) + "]")
			fmt.Fprintf(out, "  %s %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		return nil
	},
}

func severityStyle(s observability.AlertSeverity) lipgloss.Style {
	switch s {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	default:
		return severityLow
	}
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}
