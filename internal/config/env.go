package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TRIAGE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TRIAGE_ESCALATION_THRESHOLD_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EscalationThresholdSeconds = n
		}
	}
	if v := os.Getenv("TRIAGE_STALE_CLAIM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StaleClaimTimeoutSeconds = n
		}
	}
	if v := os.Getenv("TRIAGE_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SweepIntervalSeconds = n
		}
	}
	if v := os.Getenv("TRIAGE_SUB_BUF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("TRIAGE_HTTP"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TRIAGE_AMQP_URL"); v != "" {
		cfg.Transcript.AMQPURL = v
	}
	if v := os.Getenv("TRIAGE_AMQP_EXCHANGE"); v != "" {
		cfg.Transcript.Exchange = v
	}
	if v := os.Getenv("TRIAGE_AMQP_ROUTING_KEY"); v != "" {
		cfg.Transcript.RoutingKey = v
	}
}
