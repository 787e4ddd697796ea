// Package httpserver exposes the triage API over HTTP: work item CRUD
// and lifecycle commands under /v1/items, plus the live change feed as
// SSE and WebSocket under /v1/feed.
package httpserver
