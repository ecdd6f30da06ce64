package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "liftcoach",
	Short:         "Run training sessions against a coaching plan",
	Long:          "liftcoach picks the next workout in your plan, keeps the in-progress session durable between invocations and submits what you logged.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (env only when empty)")

	rootCmd.AddCommand(nextCmd, startCmd, planCmd, sessionCmd, swapCmd, historyCmd, mcpCmd)
}
