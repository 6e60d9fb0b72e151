// Command colactl drives a COLA index file from the shell: build it from a
// tab-separated tuple stream, insert one tuple at a time, or scan it against
// a single key and operator. It exists as a thin demonstration harness over
// package cola, not a production index management tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "colactl",
		Short: "Inspect and drive a COLA index file",
	}
	root.AddCommand(buildCmd(), insertCmd(), scanCmd())
	return root
}
