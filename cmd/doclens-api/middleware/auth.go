// Package middleware provides HTTP middleware for the doclens API.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

// OwnerIDKey is the context key for the authenticated document owner.
const OwnerIDKey contextKey = "owner_id"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// SecretKey signs owner tokens. Empty disables verification and puts
	// the API in development mode.
	SecretKey string
	// DefaultOwner is the owner used in development mode when the request
	// carries no owner header.
	DefaultOwner string
}

// SignOwnerToken produces the bearer token for an owner: "owner:signature"
// with an HMAC-SHA256 signature over the owner id.
func SignOwnerToken(secretKey, ownerID string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(ownerID))
	return ownerID + ":" + hex.EncodeToString(mac.Sum(nil))
}

// verifyOwnerToken checks the token signature and returns the owner id.
func verifyOwnerToken(secretKey, token string) (string, bool) {
	idx := strings.LastIndex(token, ":")
	if idx <= 0 {
		return "", false
	}
	ownerID, sig := token[:idx], token[idx+1:]

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(ownerID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return ownerID, true
}

// OwnerAuth resolves the document owner for every request. With a secret key
// it requires a signed bearer token; without one it falls back to the
// X-Owner-ID header or the configured default owner.
func OwnerAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.SecretKey == "" {
				ownerID := r.Header.Get("X-Owner-ID")
				if ownerID == "" {
					ownerID = cfg.DefaultOwner
				}
				if ownerID == "" {
					ownerID = "dev"
				}
				ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			ownerID, ok := verifyOwnerToken(cfg.SecretKey, parts[1])
			if !ok {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext extracts the owner id from the request context.
func OwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(OwnerIDKey).(string); ok {
		return v
	}
	return ""
}

// CORS returns CORS middleware for browser clients.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Owner-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
