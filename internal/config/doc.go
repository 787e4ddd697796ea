// Package config loads triage server configuration from file (JSON or
// YAML), overlays TRIAGE_* environment variables, and supplies built-in
// defaults plus the OS-specific data directory.
package config
