package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the full business dashboard",
	Long: `Show the on-demand dashboard: scheduler and resource statistics, the
ROI analysis over finished jobs, the active-job snapshot, system health and
any currently-triggered alerts.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewBatchClient(viper.GetString("url"))
		dashboard, err := client.RawJSON("/api/v1/dashboard")
		if err != nil {
			printClientError(cmd, "Dashboard", err)
			return
		}
		cmd.Println(dashboard)
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
