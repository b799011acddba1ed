// Command rentctl is the operator CLI for RentDesk: offline proration,
// Norma 43 inspection, schema migrations and API key bootstrap.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rentctl",
		Short:         "RentDesk operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		prorateCmd(),
		norma43Cmd(),
		migrateCmd(),
		keysCmd(),
	)
	return rootCmd
}
