package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaypoll/relaypoll"
	"github.com/relaypoll/relaypoll/config"
)

// timeoutExitCode distinguishes "no message arrived" from real errors
// so scripts can branch on it.
const timeoutExitCode = 2

// newLogger creates a JSON logger for CLI use. Debug level is enabled
// when the wait runs with --debug so attempt traces are visible.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// waitCmd blocks until a matching message appears or the timeout elapses.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a message to appear on the bridge",
	Long: `Wait for a message of the given type to appear for a key in the
bridge's shared message map.

The command polls the bridge until an acceptable message is found or
the overall timeout elapses. On success the matched message is printed
to stdout as JSON. Flags override values from the config file.

Exit codes:
  0 - Message found (printed to stdout)
  1 - Fatal error (bad arguments, no endpoint, malformed bridge response)
  2 - Timeout: no acceptable message within the budget

Example:
  relaypoll wait -c config.yaml --key user@example.com --type login-code
  relaypoll wait --endpoint https://bridge.example.com/messages --key k1 --type t --timeout 90s`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().StringP("config", "c", "", "path to config file")
	waitCmd.Flags().String("key", "", "key to watch in the message map (required)")
	waitCmd.Flags().String("type", "", "message type that qualifies (required)")
	waitCmd.Flags().String("endpoint", "", "bridge endpoint (overrides config)")
	waitCmd.Flags().Duration("timeout", 0, "overall polling budget (overrides config)")
	waitCmd.Flags().Duration("retro-back", 0, "acceptance window before now (overrides config)")
	waitCmd.Flags().Duration("interval", 0, "spacing between attempts (overrides config)")
	waitCmd.Flags().Duration("request-timeout", 0, "per-attempt network timeout (overrides config)")
	waitCmd.Flags().Bool("debug", false, "enable attempt-level tracing")
	_ = waitCmd.MarkFlagRequired("key")
	_ = waitCmd.MarkFlagRequired("type")
}

func runWait(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	debug = debug || cfg.Debug
	logger := newLogger(debug)

	listener, err := config.BuildListener(cfg, relaypoll.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer listener.Close()

	req, err := buildRequest(cmd, cfg, debug)
	if err != nil {
		return err
	}

	logger.Info("waiting for message",
		"key", req.Key(),
		"type", req.Type(),
		"timeout", req.Timeout().String(),
		"interval", req.Interval().String(),
	)

	// cancel the wait on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := listener.ListenFrom(ctx, req)
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	fmt.Println(string(out))

	if outcome.State == relaypoll.StateTimeout {
		logger.Warn("no acceptable message within the budget",
			"elapsed", outcome.Elapsed,
			"attempts", outcome.Attempts,
		)
		os.Exit(timeoutExitCode)
	}

	logger.Info("message found",
		"elapsed", outcome.Elapsed,
		"attempts", outcome.Attempts,
	)
	return nil
}

// loadConfig loads the config file when one is given, or an all-default
// config otherwise, so the command works from flags and environment alone.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return config.Parse(nil)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// buildRequest combines config defaults with flag overrides into the
// SDK request. Flags win over config values.
func buildRequest(cmd *cobra.Command, cfg *config.Config, debug bool) (relaypoll.Request, error) {
	key, _ := cmd.Flags().GetString("key")
	msgType, _ := cmd.Flags().GetString("type")

	opts := config.RequestOptions(cfg)

	if d := flagDuration(cmd, "timeout"); d > 0 {
		opts = append(opts, relaypoll.WithTimeout(d))
	}
	if d := flagDuration(cmd, "retro-back"); d > 0 {
		opts = append(opts, relaypoll.WithRetroBack(d))
	}
	if d := flagDuration(cmd, "interval"); d > 0 {
		opts = append(opts, relaypoll.WithInterval(d))
	}
	if d := flagDuration(cmd, "request-timeout"); d > 0 {
		opts = append(opts, relaypoll.WithRequestTimeout(d))
	}
	if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
		opts = append(opts, relaypoll.WithEndpointOverride(endpoint))
	}
	if debug {
		opts = append(opts, relaypoll.WithDebug())
	}

	req, err := relaypoll.NewRequest(key, msgType, opts...)
	if err != nil {
		return relaypoll.Request{}, fmt.Errorf("invalid wait parameters: %w", err)
	}
	return req, nil
}

// flagDuration reads a duration flag, zero when unset.
func flagDuration(cmd *cobra.Command, name string) time.Duration {
	d, _ := cmd.Flags().GetDuration(name)
	return d
}
