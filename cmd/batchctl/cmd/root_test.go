package cmd

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestRootCommand_EnvVarBinding(t *testing.T) {
	resetViper()

	t.Setenv("BATCHPLANE_URL", "http://custom-url:8080")

	if url := viper.GetString("url"); url != "http://custom-url:8080" {
		t.Errorf("expected url from env var, got: %s", url)
	}
}

func TestRootCommand_ExecuteHelp(t *testing.T) {
	resetViper()

	rootCmd.SetArgs([]string{"--help"})
	if err := rootCmd.Execute(); err != nil {
		t.Errorf("root command should execute without error: %v", err)
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{
		"submit":          false,
		"status [job_id]": false,
		"cancel [job_id]": false,
		"stats":           false,
		"roi":             false,
		"dashboard":       false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Use]; ok {
			want[cmd.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered", use)
		}
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	resetViper()

	rootCmd.SetArgs([]string{"unknown-command-xyz"})
	if err := Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRootCommand_CustomConfigFile(t *testing.T) {
	resetViper()

	tmpFile, err := os.CreateTemp("", "batchctl-test-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	tmpFile.WriteString("url: http://custom-from-config:9999\n")
	tmpFile.Close()

	cfgFile = tmpFile.Name()
	initConfig()

	if url := viper.GetString("url"); url != "http://custom-from-config:9999" {
		t.Errorf("expected url from config file, got: %s", url)
	}

	// Reset for other tests
	cfgFile = ""
}
