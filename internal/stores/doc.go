// Package stores holds short-lived security records that back the engine's supplementary flows:
// single-use account links (activation and password reset) and refresh-token lineages used for
// reuse detection.
//
// Each store has a Redis implementation with TTL keys and an in-memory implementation for
// single-instance deployments and tests. Records are binary encoded with a leading version byte.
// Link secrets are stored only as SHA-256 hashes.
package stores
