package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "ordercli",
		Short:         "agrimarket order core tools",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		migrateCommand(),
		tokenCommand(),
		seedProductCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
