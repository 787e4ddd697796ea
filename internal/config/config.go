package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// EscalationThresholdSeconds is the wait beyond which an item's
	// priority is promoted to High.
	EscalationThresholdSeconds int `json:"escalationThresholdSeconds" yaml:"escalationThresholdSeconds"`

	// StaleClaimTimeoutSeconds bounds how long an item may sit in Claimed
	// before the sweeper returns it to Unassigned. 0 disables reclamation.
	StaleClaimTimeoutSeconds int `json:"staleClaimTimeoutSeconds" yaml:"staleClaimTimeoutSeconds"`

	// SweepIntervalSeconds is the cadence of the escalation and
	// stale-claim sweepers.
	SweepIntervalSeconds int `json:"sweepIntervalSeconds" yaml:"sweepIntervalSeconds"`

	// SubscriberBuffer is the bounded event buffer per change-feed
	// subscriber; a subscriber that overflows it is dropped.
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer"`

	HTTPAddr  string `json:"httpAddr" yaml:"httpAddr"`
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`

	Transcript TranscriptConfig `json:"transcript" yaml:"transcript"`
}

// TranscriptConfig controls the optional AMQP transcript publisher.
// With an empty URL, resolutions are only logged.
type TranscriptConfig struct {
	AMQPURL    string `json:"amqpUrl" yaml:"amqpUrl"`
	Exchange   string `json:"exchange" yaml:"exchange"`
	RoutingKey string `json:"routingKey" yaml:"routingKey"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		EscalationThresholdSeconds: 300,
		StaleClaimTimeoutSeconds:   900,
		SweepIntervalSeconds:       5,
		SubscriberBuffer:           64,
		HTTPAddr:                   ":8080",
		LogLevel:                   "info",
		LogFormat:                  "text",
		Transcript: TranscriptConfig{
			Exchange:   "triage.events",
			RoutingKey: "conversation.resolved",
		},
	}
}

// EscalationThreshold returns the threshold as a duration.
func (c Config) EscalationThreshold() time.Duration {
	return time.Duration(c.EscalationThresholdSeconds) * time.Second
}

// StaleClaimTimeout returns the reclamation timeout as a duration.
func (c Config) StaleClaimTimeout() time.Duration {
	return time.Duration(c.StaleClaimTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweeper cadence as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	}
	return cfg, nil
}
