package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"batchplane/pkg/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a batch job",
	Long: `Submit a batch job to the daemon.

The job's task must be registered in the daemon's task registry. Business
metrics (revenue, customers, deadline) drive queue ordering; resource
requirements gate admission.

Example:
  batchctl submit --task noop --type financial_report --priority critical \
    --revenue 10000 --customers 50 --cpu 2 --memory 1024
  batchctl submit --task sleep --type system_maintenance --priority low \
    --arg 500ms --deadline 2026-09-01T00:00:00Z`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		task, _ := flags.GetString("task")
		jobType, _ := flags.GetString("type")
		priority, _ := flags.GetString("priority")
		taskArgs, _ := flags.GetStringSlice("arg")
		description, _ := flags.GetString("description")
		customerID, _ := flags.GetString("customer")
		revenue, _ := flags.GetFloat64("revenue")
		customers, _ := flags.GetInt("customers")
		cost, _ := flags.GetFloat64("cost")
		deadline, _ := flags.GetString("deadline")
		cpu, _ := flags.GetFloat64("cpu")
		memory, _ := flags.GetInt("memory")

		if task == "" {
			cmd.Println("Error: --task is required")
			return
		}
		if jobType == "" {
			cmd.Println("Error: --type is required")
			return
		}

		req := api.SubmitJobRequest{
			Task:             task,
			Type:             jobType,
			Priority:         priority,
			Description:      description,
			CustomerID:       customerID,
			RevenueImpact:    revenue,
			CustomerCount:    customers,
			ProcessingCost:   cost,
			CPURequirement:   cpu,
			MemoryRequiredMB: memory,
		}
		for _, a := range taskArgs {
			req.Args = append(req.Args, a)
		}
		if deadline != "" {
			t, err := time.Parse(time.RFC3339, deadline)
			if err != nil {
				cmd.Printf("Error: invalid --deadline (want RFC3339): %v\n", err)
				return
			}
			req.SLADeadline = &t
		}

		client := NewBatchClient(viper.GetString("url"))
		result, err := client.SubmitJob(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("Job submitted\n")
		cmd.Printf("  Job ID: %s\n", result.JobID)
	},
}

func init() {
	submitCmd.Flags().String("task", "", "registered task name (required)")
	submitCmd.Flags().String("type", "", "job type: customer_data, financial_report, ocr_processing, data_migration, system_maintenance (required)")
	submitCmd.Flags().String("priority", "normal", "priority: critical, high, normal, low")
	submitCmd.Flags().StringSlice("arg", nil, "task argument (repeatable)")
	submitCmd.Flags().String("description", "", "human-readable description")
	submitCmd.Flags().String("customer", "", "customer id")
	submitCmd.Flags().Float64("revenue", 0, "revenue impact in USD")
	submitCmd.Flags().Int("customers", 0, "affected customer count")
	submitCmd.Flags().Float64("cost", 0, "processing cost in USD")
	submitCmd.Flags().String("deadline", "", "SLA deadline, RFC3339")
	submitCmd.Flags().Float64("cpu", 0, "required CPU cores")
	submitCmd.Flags().Int("memory", 0, "required memory in MB")

	rootCmd.AddCommand(submitCmd)
}
