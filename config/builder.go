package config

import (
	"sort"

	"github.com/relaypoll/relaypoll"
)

// BuildListener converts parsed configuration into an SDK Listener.
//
// The endpoint and headers come from the config; the logger and any
// attempt callbacks are supplied by the caller via extra options.
func BuildListener(cfg *Config, extra ...relaypoll.Option) (*relaypoll.Listener, error) {
	var opts []relaypoll.Option

	if cfg.Endpoint != "" {
		opts = append(opts, relaypoll.WithEndpoint(cfg.Endpoint))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, relaypoll.WithDefaultHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	opts = append(opts, extra...)
	return relaypoll.New(opts...)
}

// RequestOptions converts the config's timing defaults into SDK request
// options, applied before any per-invocation overrides.
func RequestOptions(cfg *Config) []relaypoll.RequestOption {
	opts := []relaypoll.RequestOption{
		relaypoll.WithTimeout(cfg.Timeout.Duration()),
		relaypoll.WithRetroBack(cfg.RetroBack.Duration()),
		relaypoll.WithRequestTimeout(cfg.RequestTimeout.Duration()),
	}

	if cfg.Interval.Duration() > 0 {
		opts = append(opts, relaypoll.WithInterval(cfg.Interval.Duration()))
	}

	if cfg.Debug {
		opts = append(opts, relaypoll.WithDebug())
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
