package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/service"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one price check sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := getApp().Check(cmd.Context())
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func printReport(out io.Writer, r service.SweepReport) {
	fmt.Fprintf(out, "checked: %d\nalerted: %d\nnotify failed: %d\nfetch failed: %d\nno action: %d\n",
		r.Checked, r.Alerted, r.NotifyFailed, r.FetchFailed, r.NoAction)
	if r.DeleteFailed > 0 {
		fmt.Fprintf(out, "delete failed: %d\n", r.DeleteFailed)
	}
	fmt.Fprintf(out, "duration: %s\n", r.Duration.Round(time.Millisecond))
}
