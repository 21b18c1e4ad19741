package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pricewatch/internal/app"
)

var (
	simulateURL    string
	simulateTarget string
	simulatePrice  string
	simulateEmail  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次降价并通过配置的通道发送告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := decimal.NewFromString(simulatePrice)
		if err != nil {
			return errors.New("--price 必须是数字")
		}

		report, err := getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			URL:       simulateURL,
			Target:    simulateTarget,
			Price:     price,
			Recipient: simulateEmail,
		})
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateURL, "url", "https://www.amazon.com/dp/EXAMPLE", "商品链接")
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "20.00", "目标价格")
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "19.99", "模拟的当前价格")
	simulateCmd.Flags().StringVar(&simulateEmail, "email", "", "告警接收人")
}
