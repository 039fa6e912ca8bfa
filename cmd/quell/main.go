package main

import (
	"os"

	"github.com/spf13/cobra"

	"quell/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quell",
		Short: "Quell - rate limiting and verification throttling service",
		Long:  `Quell tracks request rates and one-time passcode attempt budgets, exposing admission decisions over HTTP.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
