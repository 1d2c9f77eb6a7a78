// Package middleware adapts access-token validation to net/http.
//
// [Guard] and [Optional] read the Authorization bearer token, call
// ValidateAccess, and store the resulting identity with siteAuth.WithIdentity,
// where handlers read it back through siteAuth.IdentityFromContext. No store is
// consulted; only the signing key decides.
package middleware
