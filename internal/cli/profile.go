package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/storage"
)

var profileOut string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Render the backend profile (Modelfile)",
	Long: `Render the backend profile from the profile section of the configuration.

Without --out the profile is printed to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		profile, err := core.ComposeProfile(Config.Profile)
		if err != nil {
			return err
		}
		if profileOut == "" {
			_, err := io.WriteString(cmd.OutOrStdout(), profile)
			return err
		}
		if err := storage.WriteFileAtomic(profileOut, func(w io.Writer) error {
			_, err := io.WriteString(w, profile)
			return err
		}); err != nil {
			return core.EmissionError("writing profile", err)
		}
		narrate(cmd.ErrOrStderr(), okStyle, "Wrote %s", profileOut)
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVarP(&profileOut, "out", "o", "", "Write the profile to this file")
	rootCmd.AddCommand(profileCmd)
}
