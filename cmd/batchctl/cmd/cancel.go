package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a pending job",
	Long: `Cancel a job that is still waiting in the queue.

Jobs that have already started execute to completion; cancelling them
returns a conflict.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := NewBatchClient(viper.GetString("url"))
		result, err := client.CancelJob(jobID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				if apiErr.StatusCode == http.StatusConflict {
					cmd.Printf("Job %s could not be cancelled (already running or finished)\n", jobID)
					return
				}
				cmd.Printf("Cancel failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Cancel failed: %v\n", err)
			}
			return
		}

		if result.Cancelled {
			cmd.Printf("Job %s cancelled\n", result.JobID)
		} else {
			cmd.Printf("Job %s could not be cancelled\n", result.JobID)
		}
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
