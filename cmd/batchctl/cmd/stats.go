package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show scheduler and resource statistics",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewBatchClient(viper.GetString("url"))

		scheduler, err := client.RawJSON("/api/v1/stats")
		if err != nil {
			printClientError(cmd, "Stats", err)
			return
		}
		resources, err := client.RawJSON("/api/v1/resources")
		if err != nil {
			printClientError(cmd, "Stats", err)
			return
		}

		cmd.Println("Scheduler:")
		cmd.Println(scheduler)
		cmd.Println("Resources:")
		cmd.Println(resources)
	},
}

var roiCmd = &cobra.Command{
	Use:   "roi",
	Short: "Show the ROI analysis over finished jobs",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewBatchClient(viper.GetString("url"))
		report, err := client.RawJSON("/api/v1/roi")
		if err != nil {
			printClientError(cmd, "ROI", err)
			return
		}
		cmd.Println(report)
	},
}

func printClientError(cmd *cobra.Command, op string, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("%s failed (%d): %s\n", op, apiErr.StatusCode, apiErr.Message)
	} else {
		cmd.Printf("%s failed: %v\n", op, err)
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(roiCmd)
}
