// Package prometheus exposes engine counters and the validation latency
// histogram as a client_golang Collector.
//
// Register [Collector] in an existing registry, or mount [Collector.Handler]
// for a self-contained /metrics endpoint. Series are named siteauth_*.
package prometheus
