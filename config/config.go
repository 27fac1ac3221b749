// Package config provides YAML configuration parsing for relaypoll.
//
// This package enables running relaypoll as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK
// approach. The file carries the bridge endpoint, authentication
// headers, and timing defaults; what to wait for (key and type) comes
// from the CLI flags.
//
// Example configuration:
//
//	endpoint: ${RELAY_ENDPOINT}
//	interval: 5s
//	timeout: 2m
//	retro_back: 5m
//	request_timeout: 10s
//
//	headers:
//	  Authorization: Bearer ${RELAY_TOKEN}
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for relaypoll.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Endpoint is the bridge URL serving the shared message map.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}.
	// May be left empty, in which case the SDK falls back to the
	// RELAYPOLL_ENDPOINT environment variable.
	Endpoint string `yaml:"endpoint"`

	// Interval is the spacing between poll attempts.
	// Accepts duration strings like "5s", "1m", "500ms". Defaults to 5s.
	Interval Duration `yaml:"interval"`

	// Timeout is the total wall-clock budget for one wait. Defaults to 2m.
	Timeout Duration `yaml:"timeout"`

	// RetroBack is the acceptance window before "now" within which a
	// message's emission timestamp must fall. Defaults to 5m.
	RetroBack Duration `yaml:"retro_back"`

	// RequestTimeout is the per-attempt network timeout. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Headers are HTTP headers sent with every poll request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Debug enables attempt-level diagnostic tracing.
	Debug bool `yaml:"debug"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Endpoint and Header values.
// Defaults are applied for Interval (5s), Timeout (2m), RetroBack (5m),
// and RequestTimeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Interval == 0 {
		cfg.Interval = Duration(5 * time.Second)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(2 * time.Minute)
	}
	if cfg.RetroBack == 0 {
		cfg.RetroBack = Duration(5 * time.Minute)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Endpoint != "" {
		expanded, err := expandEnvVars(c.Endpoint)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		c.Endpoint = expanded

		parsedURL, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("endpoint scheme must be http or https, got %q", parsedURL.Scheme)
		}
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Interval.Duration() < 0 {
		return fmt.Errorf("interval cannot be negative, got %s", c.Interval.Duration())
	}
	if c.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration())
	}
	if c.RetroBack.Duration() <= 0 {
		return fmt.Errorf("retro_back must be positive, got %s", c.RetroBack.Duration())
	}
	if c.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Duration())
	}

	return nil
}
