package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	trackURL    string
	trackTarget string
	trackEmail  string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Start tracking a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trackURL == "" || trackTarget == "" || trackEmail == "" {
			return fmt.Errorf("--url, --target and --email must be provided")
		}

		item, err := getApp().Track(cmd.Context(), trackURL, trackTarget, trackEmail)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tracking item %d at target %s\n", item.ID, item.TargetPrice.StringFixed(2))
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackURL, "url", "", "Product page URL")
	trackCmd.Flags().StringVar(&trackTarget, "target", "", "Target price")
	trackCmd.Flags().StringVar(&trackEmail, "email", "", "Alert recipient")
}
