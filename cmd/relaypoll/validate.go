package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaypoll/relaypoll/config"
)

// validateCmd validates a config file without contacting the bridge.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a relaypoll configuration file without contacting the bridge.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  relaypoll validate -c config.yaml
  relaypoll validate --config /etc/relaypoll/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "(none - RELAYPOLL_ENDPOINT will be used)"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Endpoint:        %s\n", endpoint)
	fmt.Printf("  Interval:        %s\n", cfg.Interval.Duration())
	fmt.Printf("  Timeout:         %s\n", cfg.Timeout.Duration())
	fmt.Printf("  RetroBack:       %s\n", cfg.RetroBack.Duration())
	fmt.Printf("  Request timeout: %s\n", cfg.RequestTimeout.Duration())
	fmt.Printf("  Headers:         %d\n", len(cfg.Headers))

	return nil
}
