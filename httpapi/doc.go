// Package httpapi exposes the engine over JSON HTTP with echo. Refresh and
// trust tokens travel only in httpOnly cookies whose attributes come from
// cookie.Compute; access tokens travel in the response body and the
// Authorization header.
package httpapi
