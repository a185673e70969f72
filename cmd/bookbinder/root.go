// Package main provides the entry point for the bookbinder CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bookbinder.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookbinder",
		Short: "Stitch serialized web chapters into a single HTML book",
		Long: `Bookbinder follows a chain of "next chapter" links from a start URL,
fetches the chapters concurrently, and binds them into one HTML document
in reading order.

Chapter indices are assigned when each link is discovered, so the book
reads correctly no matter in which order the fetches finish.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewStitchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
