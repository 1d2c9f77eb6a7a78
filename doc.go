// Package siteAuth is the authentication and session-security engine of the
// site tracker: password login, an emailed one-time code as second factor,
// trusted-device recognition that lets a known browser skip that code, and
// stateless access tokens paired with rotating refresh tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Revocation
//
// Access tokens are never checked against a store and live until they expire
// (15 minutes by default). Refresh tokens embed the account's token version;
// bumping it through [Engine.RevokeSessions], a password change, a password
// reset or deactivation invalidates every outstanding refresh token at once.
// Optional reuse detection additionally tracks the latest token of each
// refresh lineage and treats replay of a superseded token as compromise.
//
// # Collaborators
//
// Audit events go to an [AuditSink] through a buffered dispatcher and email
// goes through an [EmailTransport]. Failures of either are logged and never
// fail an authentication flow.
//
// # Storage
//
// Accounts live behind credential.Store (memory, Postgres or MySQL). One-time
// codes, trusted devices, account links, refresh lineages and throttling
// counters live in Redis when [Builder.WithRedis] is used and in process
// memory otherwise; the memory variants suit a single instance only.
package siteAuth
