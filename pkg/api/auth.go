package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

type ownerCtxKey struct{}

// RequireOwner resolves the owner id from the bearer token. The owner never
// comes from a request field.
func RequireOwner(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			owner := lookupOwner(tokens, strings.TrimSpace(token))
			if !ok || owner == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="notepilot"`)
				writeError(w, &apperr.Error{
					Code:    apperr.CodeAuthorizationDenied,
					Status:  http.StatusUnauthorized,
					Message: "missing or unknown bearer token",
				})
				return
			}
			ctx := context.WithValue(r.Context(), ownerCtxKey{}, owner)
			ctx = slogx.WithAttrs(ctx, slogx.OwnerID(owner))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupOwner(tokens map[string]string, token string) string {
	if token == "" {
		return ""
	}
	for t, owner := range tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return owner
		}
	}
	return ""
}

// OwnerFromContext returns the owner resolved by RequireOwner.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}
