// Package client contains Cobra CLI commands that drive a running
// triage server over its HTTP API.
package client
