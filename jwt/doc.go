// Package jwt mints and verifies the engine's two token kinds: short-lived stateless access
// tokens carrying only account id and role, and refresh tokens that additionally carry the
// account token version and lifetime class. Each kind has its own HS256 secret.
package jwt
