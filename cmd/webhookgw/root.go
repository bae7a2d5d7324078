package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webhookgw/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "webhookgw",
	Short: "Programmable webhook forwarding gateway",
	Long:  `webhookgw receives inbound webhooks, transforms their payloads, and forwards them to configured downstream targets.`,
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(config.Init)
}

func main() {
	SetupServeCmd()
	Execute()
}
