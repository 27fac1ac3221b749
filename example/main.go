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

	"github.com/relaypoll/relaypoll"
)

func main() {
	// start mock bridge (see mock_bridge.go); the message for our key
	// appears after 12 seconds, so the first few attempts find nothing
	go StartMockBridge(":9999", "user@example.com", 12*time.Second)
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	listener, err := relaypoll.New(
		relaypoll.WithEndpoint("http://localhost:9999/messages"),
		relaypoll.WithLogger(logger),
		relaypoll.WithAttemptCallback(func(a relaypoll.Attempt) {
			fmt.Printf("  attempt %d: found=%v latency=%s\n", a.Number, a.Found, a.Latency)
		}),
	)
	if err != nil {
		slog.Error("failed to create listener", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	req, err := relaypoll.NewRequest("user@example.com", "login-code",
		relaypoll.WithTimeout(time.Minute),
		relaypoll.WithRetroBack(time.Minute),
		relaypoll.WithInterval(5*time.Second),
		relaypoll.WithDebug(),
	)
	if err != nil {
		slog.Error("failed to build request", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("relaypoll demo: waiting for a login code on the mock bridge")
	fmt.Println("(published 12s in; polling every 5s; Ctrl+C to stop)")
	fmt.Println()

	// cancel the wait on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := listener.ListenFrom(ctx, req)
	if err != nil {
		slog.Error("wait failed", "error", err)
		os.Exit(1)
	}

	switch outcome.State {
	case relaypoll.StateSuccess:
		var code string
		_ = json.Unmarshal(outcome.Data, &code)
		fmt.Printf("\ngot code %s after %.1fs and %d attempts\n", code, outcome.Elapsed, outcome.Attempts)
	case relaypoll.StateTimeout:
		fmt.Printf("\nno message after %.1fs and %d attempts\n", outcome.Elapsed, outcome.Attempts)
	}
}
