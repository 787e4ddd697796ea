package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EscalationThresholdSeconds != 300 {
		t.Fatalf("default threshold: %d", cfg.EscalationThresholdSeconds)
	}
	if cfg.SubscriberBuffer != 64 {
		t.Fatalf("default sub buffer: %d", cfg.SubscriberBuffer)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.json")
	body := `{"escalationThresholdSeconds": 120, "httpAddr": ":9090"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EscalationThresholdSeconds != 120 || cfg.HTTPAddr != ":9090" {
		t.Fatalf("json overrides not applied: %+v", cfg)
	}
	// untouched fields keep defaults
	if cfg.SweepIntervalSeconds != 5 {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.yaml")
	body := "escalationThresholdSeconds: 60\ntranscript:\n  amqpUrl: amqp://localhost:5672\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EscalationThresholdSeconds != 60 {
		t.Fatalf("yaml override not applied: %+v", cfg)
	}
	if cfg.Transcript.AMQPURL != "amqp://localhost:5672" {
		t.Fatalf("nested yaml override not applied: %+v", cfg)
	}
}

func TestLoadBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TRIAGE_ESCALATION_THRESHOLD_SECONDS", "42")
	t.Setenv("TRIAGE_HTTP", ":7070")
	t.Setenv("TRIAGE_SUB_BUF", "8")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.EscalationThresholdSeconds != 42 {
		t.Fatalf("env threshold: %d", cfg.EscalationThresholdSeconds)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("env http addr: %s", cfg.HTTPAddr)
	}
	if cfg.SubscriberBuffer != 8 {
		t.Fatalf("env sub buf: %d", cfg.SubscriberBuffer)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.EscalationThreshold().Seconds() != 300 {
		t.Fatalf("threshold duration: %v", cfg.EscalationThreshold())
	}
	if cfg.StaleClaimTimeout().Seconds() != 900 {
		t.Fatalf("stale claim duration: %v", cfg.StaleClaimTimeout())
	}
}
