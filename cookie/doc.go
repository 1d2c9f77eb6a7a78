// Package cookie computes transport attributes for the engine's cookies.
//
// [Compute] is a pure function of the request's effective host and scheme and the configured
// domains. Loopback hosts get non-secure SameSite=Lax cookies with no Domain so local HTTP
// development works. Every other host gets Secure SameSite=None cookies, scoped to the
// override domain, the canonical parent domain, or the exact host, in that order.
package cookie
