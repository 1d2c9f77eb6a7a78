// Package credential defines the account record consulted by the authentication engine,
// the store contract every credential backend implements, and an in-memory backend.
//
// SQL backends live in the postgres and mysql subpackages.
package credential
