package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	siteAuth "github.com/MrEthical07/siteAuth"
)

// Validator verifies an access token. *siteAuth.Engine satisfies it.
type Validator interface {
	ValidateAccess(ctx context.Context, token string) (*siteAuth.Identity, error)
}

// Guard rejects requests without a valid bearer access token with 401 and
// otherwise attaches the identity to the request context.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w, siteAuth.CodeUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, siteAuth.CodeUnauthorized)
				return
			}

			id, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				unauthorized(w, siteAuth.ErrorCodeOf(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(siteAuth.WithIdentity(r.Context(), id)))
		})
	}
}

// Optional attaches the identity when a valid bearer token is present and
// passes every request through.
func Optional(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if id, err := v.ValidateAccess(r.Context(), token); err == nil {
						r = r.WithContext(siteAuth.WithIdentity(r.Context(), id))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, code siteAuth.ErrorCode) {
	if code != siteAuth.CodeTokenInvalid {
		code = siteAuth.CodeUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(code),
		"message": code.Message(),
	})
}
