package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sightline-labs/sightflow/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	// Optional .env for local development; system env wins when absent.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sightflow",
	Short: "SightFlow pipeline step CLI",
	Long:  "SightFlow — a CLI for validating and exercising recognize-then-act pipelines.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("sightflow version %s\n", version))

	rootCmd.AddCommand(cli.NewValidateCmd())
	rootCmd.AddCommand(cli.NewDemoCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
}
