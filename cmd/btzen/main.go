// Command btzen is a small demo CLI around the BTZen core: it loads a
// YAML device manifest and lets an operator connect, read or write
// devices manually, the way srgg-blecli/cmd/blim and
// adnanabbasy-ComX-Bridge/cmd/comx wire cobra root commands around
// their own cores. It is not part of the library (spec.md §1 places
// CLI entry points outside the core).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "btzen",
	Short:   "Manual BLE device access over a BTZen session",
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, "btzen:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(newConnectCmd(), newReadCmd(), newWriteCmd())
}
