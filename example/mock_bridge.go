package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// mockMessage mirrors the bridge's wire shape for one map entry.
type mockMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Meta struct {
		Timestamp  int64 `json:"timestamp"`
		Expiration int64 `json:"expiration"`
	} `json:"meta"`
}

// StartMockBridge runs a mock message bridge on addr. The map starts
// empty; after publishDelay a login code appears for the given key,
// valid for five minutes. Call this in a goroutine before listening.
func StartMockBridge(addr, key string, publishDelay time.Duration) {
	var (
		mu       sync.Mutex
		messages = make(map[string]mockMessage)
	)

	time.AfterFunc(publishDelay, func() {
		msg := mockMessage{Type: "login-code", Data: "482913"}
		msg.Meta.Timestamp = time.Now().Unix()
		msg.Meta.Expiration = 300

		mu.Lock()
		messages[key] = msg
		mu.Unlock()
		slog.Info("mock bridge published message", "key", key, "type", msg.Type)
	})

	http.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(messages); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock bridge error", "error", err)
	}
}
