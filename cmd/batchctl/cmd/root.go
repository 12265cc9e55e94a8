package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "batchctl",
	Short: "batchctl is a command line tool for operating a batchplane daemon",
	Long: `batchctl is the command-line interface for the batchplane batch
scheduling daemon.

batchplane schedules heterogeneous background jobs (document processing,
reporting, migrations, maintenance) across a fixed worker pool, ordered by a
computed business-value score and gated by host CPU/memory budgets.

Common workflows:

  Submit a job:
    batchctl submit --task noop --type financial_report --priority critical \
      --revenue 10000 --customers 50

  Check a job:
    batchctl status <job-id>

  Cancel a pending job:
    batchctl cancel <job-id>

  Inspect the system:
    batchctl stats
    batchctl dashboard

Configuration:
  Set the API endpoint via a flag, environment variable or config file:
    BATCHPLANE_URL    API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".batchctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".batchctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "BATCHPLANE_VARNAME"
	viper.SetEnvPrefix("BATCHPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.batchctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "batchplane daemon URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
