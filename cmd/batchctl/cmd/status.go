package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := NewBatchClient(viper.GetString("url"))
		job, err := client.JobStatus(jobID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Status failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Status failed: %v\n", err)
			}
			return
		}

		cmd.Printf("Job ID:    %s\n", job.JobID)
		cmd.Printf("Type:      %s\n", job.Type)
		cmd.Printf("Priority:  %s\n", job.Priority)
		cmd.Printf("Status:    %s\n", strings.ToUpper(job.Status))
		cmd.Printf("Score:     %.2f\n", job.Score)
		cmd.Printf("Retries:   %d/%d\n", job.RetryCount, job.MaxRetries)
		cmd.Printf("Created:   %s\n", job.CreatedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			cmd.Printf("Started:   %s\n", job.StartedAt.Format(time.RFC3339))
		}
		if job.CompletedAt != nil {
			cmd.Printf("Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		}
		if job.ErrorMessage != "" {
			cmd.Printf("Error:     %s\n", job.ErrorMessage)
		}
		if len(job.ExecutionLog) > 0 {
			cmd.Println("Execution log:")
			for _, line := range job.ExecutionLog {
				cmd.Printf("  %s\n", line)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
