package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// TokenVerifier verifies an ID token and returns the user's claims. Satisfied
// by FirebaseAuth; tests substitute their own.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, idToken string) (*UserClaims, error)
}

// debugImpersonateHeader selects the acting user when auth is skipped.
// ONLY honored in development mode - never in production.
const debugImpersonateHeader = "X-Debug-Impersonate-User"

// localDevUserID is the default identity when auth is skipped and no
// impersonation header is present.
const localDevUserID = "local-dev-user"

// Middleware enforces bearer-token authentication on every wrapped route and
// stores the verified claims in the request context. With skipAuth set it
// instead injects a local development identity, optionally overridden by the
// impersonation header.
func Middleware(verifier TokenVerifier, skipAuth bool, log *logrus.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipAuth {
				uid := r.Header.Get(debugImpersonateHeader)
				if uid == "" {
					uid = localDevUserID
				}
				claims := &UserClaims{UID: uid, Email: uid + "@debug.local"}
				next.ServeHTTP(w, r.WithContext(withUserClaims(r.Context(), claims)))
				return
			}

			token, err := ExtractTokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeUnauthenticated(w, err.Error())
				return
			}

			claims, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				log.WithError(err).Debug("token verification failed")
				writeUnauthenticated(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserClaims(r.Context(), claims)))
		})
	}
}

// writeUnauthenticated writes a 401 in the API's error envelope shape.
func writeUnauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"error": map[string]any{
			"code":    "UNAUTHENTICATED",
			"message": message,
		},
	})
}

// Context keys
type contextKey string

const userClaimsKey contextKey = "user_claims"

// withUserClaims adds user claims to the context
func withUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// WithUserClaims is the exported version for testing purposes
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return withUserClaims(ctx, claims)
}

// GetUserClaims extracts user claims from context
func GetUserClaims(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*UserClaims)
	return claims, ok
}

// GetUserID is a convenience function to get the user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	if claims, ok := GetUserClaims(ctx); ok {
		return claims.UID, true
	}
	return "", false
}
