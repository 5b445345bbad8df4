// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads trackerbridge's runtime configuration from
// environment variables, with a system keychain fallback for the two
// tracker API keys when they're left unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
)

const keychainService = "trackerbridge"

// Config is the complete runtime configuration for the daemon and CLI.
type Config struct {
	Log       LogConfig
	Queue     QueueConfig
	Webhook   WebhookConfig
	Bugzilla  BugzillaConfig
	Jira      JiraConfig
	Actions   ActionsConfig
	Sentry    SentryConfig
	Telemetry TelemetryConfig
}

// LogConfig controls structured log output. Mirrors internal/log.Config's
// environment conventions (APP_DEBUG, LOG_LEVEL, LOG_FORMAT).
type LogConfig struct {
	Level  string
	Format string
	Debug  bool
}

// QueueConfig controls the dead-letter queue backend and retry behavior.
type QueueConfig struct {
	// DSN is a backend connection string, e.g. "file:///var/lib/trackerbridge/queue".
	DSN string

	// RetryTimeout is the age past which a queued item is dropped rather
	// than retried. Environment: RETRY_TIMEOUT_DAYS (default 7).
	RetryTimeout time.Duration

	// ConstantRetry enables the ticker-driven background retry worker
	// instead of relying solely on an externally scheduled `retry run-once`.
	ConstantRetry bool
}

// WebhookConfig configures the HTTP intake endpoint.
type WebhookConfig struct {
	// SharedSecret, when set, requires an HMAC-SHA256 signature on inbound
	// webhook requests. Environment: WEBHOOK_SHARED_SECRET. Empty disables
	// verification, matching spec.md's thin-intake Non-goal.
	SharedSecret string
}

// BugzillaConfig configures the source-tracker client.
type BugzillaConfig struct {
	BaseURL string
	APIKey  string
}

// JiraConfig configures the target-tracker client.
type JiraConfig struct {
	BaseURL  string
	Username string
	APIKey   string
}

// ActionsConfig points at the action registry YAML file.
type ActionsConfig struct {
	// Path is the filesystem path to the action registry config.
	// Environment: TRACKERBRIDGE_CONFIG.
	Path string
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// TelemetryConfig configures OpenTelemetry span export.
type TelemetryConfig struct {
	// OTLPEndpoint, when set, is also read directly by internal/tracing via
	// OTEL_EXPORTER_OTLP_ENDPOINT; it's surfaced here too so `config validate`
	// can report it.
	OTLPEndpoint string
}

// Default returns a Config with sensible defaults for every field that
// Load doesn't require an operator to set explicitly.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Queue: QueueConfig{
			RetryTimeout:  7 * 24 * time.Hour,
			ConstantRetry: false,
		},
		Actions: ActionsConfig{
			Path: "trackerbridge.yaml",
		},
		Sentry: SentryConfig{
			TracesSampleRate: 0,
		},
	}
}

// Load builds a Config from environment variables, falling back to the
// system keychain for the two tracker API keys when they're unset, and
// validates the result.
func Load() (*Config, error) {
	cfg := Default()
	cfg.loadFromEnv()
	cfg.loadSecretsFromKeychain()

	if err := cfg.Validate(); err != nil {
		return nil, &trackererrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("APP_DEBUG"); val == "true" || val == "1" {
		c.Log.Debug = true
		c.Log.Level = "debug"
	}

	if val := os.Getenv("DL_QUEUE_DSN"); val != "" {
		c.Queue.DSN = val
	}
	if val := os.Getenv("RETRY_TIMEOUT_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil {
			c.Queue.RetryTimeout = time.Duration(days) * 24 * time.Hour
		}
	}
	if val := os.Getenv("CONSTANT_RETRY"); val != "" {
		c.Queue.ConstantRetry = val == "true" || val == "1"
	}

	if val := os.Getenv("WEBHOOK_SHARED_SECRET"); val != "" {
		c.Webhook.SharedSecret = val
	}

	if val := os.Getenv("BUGZILLA_BASE_URL"); val != "" {
		c.Bugzilla.BaseURL = val
	}
	if val := os.Getenv("BUGZILLA_API_KEY"); val != "" {
		c.Bugzilla.APIKey = val
	}

	if val := os.Getenv("JIRA_BASE_URL"); val != "" {
		c.Jira.BaseURL = val
	}
	if val := os.Getenv("JIRA_USERNAME"); val != "" {
		c.Jira.Username = val
	}
	if val := os.Getenv("JIRA_API_KEY"); val != "" {
		c.Jira.APIKey = val
	}

	if val := os.Getenv("TRACKERBRIDGE_CONFIG"); val != "" {
		c.Actions.Path = val
	}

	if val := os.Getenv("SENTRY_DSN"); val != "" {
		c.Sentry.DSN = val
	}
	if val := os.Getenv("SENTRY_TRACES_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.Sentry.TracesSampleRate = rate
		}
	}

	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Telemetry.OTLPEndpoint = val
	}
}

// loadSecretsFromKeychain fills in JiraAPIKey/BugzillaAPIKey from the system
// keychain when the corresponding environment variable was left unset. A
// missing or unavailable keychain is not an error here; Validate catches a
// still-empty key afterwards.
func (c *Config) loadSecretsFromKeychain() {
	if c.Jira.APIKey == "" {
		if val, err := keyring.Get(keychainService, "jira"); err == nil {
			c.Jira.APIKey = val
		}
	}
	if c.Bugzilla.APIKey == "" {
		if val, err := keyring.Get(keychainService, "bugzilla"); err == nil {
			c.Bugzilla.APIKey = val
		}
	}
}

// Validate checks that the configuration is complete and internally
// consistent.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Queue.DSN == "" {
		errs = append(errs, "queue.dsn is required (DL_QUEUE_DSN)")
	}
	if c.Queue.RetryTimeout <= 0 {
		errs = append(errs, "queue.retry_timeout must be positive (RETRY_TIMEOUT_DAYS)")
	}

	if c.Bugzilla.BaseURL == "" {
		errs = append(errs, "bugzilla.base_url is required (BUGZILLA_BASE_URL)")
	}
	if c.Bugzilla.APIKey == "" {
		errs = append(errs, "bugzilla.api_key is required (BUGZILLA_API_KEY or keychain entry trackerbridge/bugzilla)")
	}

	if c.Jira.BaseURL == "" {
		errs = append(errs, "jira.base_url is required (JIRA_BASE_URL)")
	}
	if c.Jira.Username == "" {
		errs = append(errs, "jira.username is required (JIRA_USERNAME)")
	}
	if c.Jira.APIKey == "" {
		errs = append(errs, "jira.api_key is required (JIRA_API_KEY or keychain entry trackerbridge/jira)")
	}

	if c.Actions.Path == "" {
		errs = append(errs, "actions.path is required (TRACKERBRIDGE_CONFIG)")
	}

	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		errs = append(errs, fmt.Sprintf("sentry.traces_sample_rate must be between 0 and 1, got %v", c.Sentry.TracesSampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
