// Package devicetrust implements the trusted-device registry: remembering a device after
// a completed second factor, recognizing it on later logins, and revoking it.
//
// A device is identified by an opaque random token held in a cookie. Only the SHA-256 of
// that token is stored, next to a hash of the normalized user agent and an optional coarse
// IP prefix chosen by an [IPPolicy]. Expiry slides forward on every recognition.
package devicetrust
