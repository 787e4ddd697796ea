// Package id generates time-sortable work item identifiers.
//
// IDs are 16 bytes, big-endian: 8 bytes of unix-millisecond timestamp
// followed by 8 bytes of per-process sequence, so lexical order matches
// creation order. The hex form is what callers and the HTTP API see.
package id
