// Package rate implements Redis fixed-window counters for login throttling.
//
// Counters use INCR with an EXPIRE on the first hit of a window. Key prefixes:
//   - srl:e: failed logins per email
//   - srl:i: failed logins per client IP
//   - src:   one-time code sends per email
//
// A nil *Limiter allows everything.
package rate
