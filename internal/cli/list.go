package cli

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Display tracked products",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().List(cmd.Context(), cmd.OutOrStdout())
	},
}
