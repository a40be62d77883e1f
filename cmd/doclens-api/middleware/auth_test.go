package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerEcho() (http.Handler, *string) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestSignOwnerToken_Roundtrip(t *testing.T) {
	token := SignOwnerToken("secret", "owner-1")

	ownerID, ok := verifyOwnerToken("secret", token)
	require.True(t, ok)
	assert.Equal(t, "owner-1", ownerID)
}

func TestVerifyOwnerToken_Rejects(t *testing.T) {
	valid := SignOwnerToken("secret", "owner-1")

	tamperedSig := valid[:len(valid)-1] + "0"
	if tamperedSig == valid {
		tamperedSig = valid[:len(valid)-1] + "1"
	}

	tests := []struct {
		name  string
		token string
	}{
		{"tampered owner", "owner-2" + valid[len("owner-1"):]},
		{"tampered signature", tamperedSig},
		{"wrong secret", SignOwnerToken("other", "owner-1")},
		{"no separator", "owner-1"},
		{"empty owner", ":abcdef"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := verifyOwnerToken("secret", tc.token)
			assert.False(t, ok)
		})
	}
}

func TestOwnerAuth_ValidToken(t *testing.T) {
	next, seen := ownerEcho()
	handler := OwnerAuth(AuthConfig{SecretKey: "secret"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+SignOwnerToken("secret", "owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", *seen)
}

func TestOwnerAuth_MissingHeader(t *testing.T) {
	next, _ := ownerEcho()
	handler := OwnerAuth(AuthConfig{SecretKey: "secret"})(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestOwnerAuth_BadHeaderFormat(t *testing.T) {
	next, _ := ownerEcho()
	handler := OwnerAuth(AuthConfig{SecretKey: "secret"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerAuth_InvalidToken(t *testing.T) {
	next, _ := ownerEcho()
	handler := OwnerAuth(AuthConfig{SecretKey: "secret"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+SignOwnerToken("wrong-secret", "owner-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestOwnerAuth_DevModeHeader(t *testing.T) {
	next, seen := ownerEcho()
	handler := OwnerAuth(AuthConfig{DefaultOwner: "default"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("X-Owner-ID", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", *seen)
}

func TestOwnerAuth_DevModeDefaultOwner(t *testing.T) {
	next, seen := ownerEcho()
	handler := OwnerAuth(AuthConfig{DefaultOwner: "default"})(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, "default", *seen)
}

func TestOwnerAuth_DevModeFallback(t *testing.T) {
	next, seen := ownerEcho()
	handler := OwnerAuth(AuthConfig{})(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, "dev", *seen)
}

func TestOwnerFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", OwnerFromContext(req.Context()))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	next, _ := ownerEcho()
	handler := CORS([]string{"https://app.example"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	next, _ := ownerEcho()
	handler := CORS([]string{"https://app.example"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	next, _ := ownerEcho()
	handler := CORS([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := CORS([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
}
