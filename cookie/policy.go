package cookie

import (
	"net"
	"net/http"
	"strings"
)

// Request is the subset of an inbound request the policy depends on.
type Request struct {
	Host           string
	Proto          string
	ForwardedHost  string
	ForwardedProto string
}

// FromHTTP extracts a Request from r, honouring X-Forwarded-Host and X-Forwarded-Proto.
func FromHTTP(r *http.Request) Request {
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	return Request{
		Host:           r.Host,
		Proto:          proto,
		ForwardedHost:  r.Header.Get("X-Forwarded-Host"),
		ForwardedProto: r.Header.Get("X-Forwarded-Proto"),
	}
}

// Config holds the deployment's domain settings.
type Config struct {
	// DomainOverride, when set, is used as the Domain of every non-loopback cookie.
	DomainOverride string
	// CanonicalDomain is the production parent domain, e.g. "example.com".
	CanonicalDomain string
}

// Attributes are the computed cookie attributes for one request.
type Attributes struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
	Host     string
	Scheme   string
}

// Compute derives cookie attributes for req under cfg.
func Compute(req Request, cfg Config) Attributes {
	host := effectiveHost(req)
	scheme := firstValue(req.ForwardedProto)
	if scheme == "" {
		scheme = strings.ToLower(strings.TrimSpace(req.Proto))
	}
	if scheme == "" {
		scheme = "http"
	}

	if isLoopback(host) {
		return Attributes{Secure: false, SameSite: http.SameSiteLaxMode, Host: host, Scheme: scheme}
	}

	attrs := Attributes{Secure: true, SameSite: http.SameSiteNoneMode, Host: host, Scheme: scheme}
	if override := strings.TrimSpace(cfg.DomainOverride); override != "" {
		attrs.Domain = override
		return attrs
	}
	canonical := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.CanonicalDomain)), ".")
	if canonical != "" && (host == canonical || strings.HasSuffix(host, "."+canonical)) {
		attrs.Domain = "." + canonical
	}
	return attrs
}

func effectiveHost(req Request) string {
	host := firstValue(req.ForwardedHost)
	if host == "" {
		host = strings.TrimSpace(req.Host)
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	return strings.ToLower(host)
}

// firstValue takes the client-most entry of a comma-separated proxy header.
func firstValue(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.ToLower(strings.TrimSpace(first))
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
