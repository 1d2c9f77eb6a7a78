package cookie

import (
	"net/http"
	"time"
)

const (
	// RefreshName carries the refresh token, scoped to the refresh endpoint.
	RefreshName = "refreshToken"
	// TrustName carries the raw device trust token.
	TrustName = "mfa_trust"
)

// Refresh builds the refresh-token cookie.
func Refresh(attrs Attributes, path, token string, expiresAt time.Time, now time.Time) *http.Cookie {
	return build(attrs, RefreshName, path, token, expiresAt, now)
}

// Trust builds the device trust cookie.
func Trust(attrs Attributes, token string, expiresAt time.Time, now time.Time) *http.Cookie {
	return build(attrs, TrustName, "/", token, expiresAt, now)
}

// ClearRefresh returns a cookie that deletes the refresh cookie.
func ClearRefresh(attrs Attributes, path string) *http.Cookie {
	return expired(attrs, RefreshName, path)
}

// ClearTrust returns a cookie that deletes the trust cookie.
func ClearTrust(attrs Attributes) *http.Cookie {
	return expired(attrs, TrustName, "/")
}

func build(attrs Attributes, name, path, value string, expiresAt, now time.Time) *http.Cookie {
	maxAge := int(expiresAt.Sub(now) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   attrs.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		Secure:   attrs.Secure,
		HttpOnly: true,
		SameSite: attrs.SameSite,
	}
}

func expired(attrs Attributes, name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   attrs.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   attrs.Secure,
		HttpOnly: true,
		SameSite: attrs.SameSite,
	}
}
