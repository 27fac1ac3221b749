// Package main is the entry point for the relaypoll CLI.
//
// relaypoll can be used either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone
// binary approach, useful for shell-scripted flows that need to block
// on an out-of-band message.
//
// Usage:
//
//	relaypoll wait -c config.yaml --key user@example.com --type login-code
//	relaypoll validate -c config.yaml  # Validate configuration
//	relaypoll version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "relaypoll",
	Short: "Wait for messages relayed through an HTTP bridge",
	Long: `relaypoll blocks until a message of the requested type appears for a
key in a bridge's shared message map, or until a timeout elapses.

It is built for flows that hand off a verification code or login link
to an external inbox and relay it back through an HTTP endpoint.

Quick start:
  1. Create a config file (relaypoll.yaml) pointing at the bridge
  2. Run: relaypoll wait -c relaypoll.yaml --key user@example.com --type login-code
  3. The matched message is printed as JSON on success

Example config:
  endpoint: ${RELAY_ENDPOINT}
  interval: 5s
  headers:
    Authorization: Bearer ${RELAY_TOKEN}`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this relaypoll binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relaypoll %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
