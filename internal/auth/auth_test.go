package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "talent.identity"}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "recruiter-1",
		"tenant_id": "tenant-1",
		"iss":       testConfig.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    []string{ScopeCandidatesRead, ScopeRequisitionsWrite},
	}
}

func TestParseClaimsNormalizesScopes(t *testing.T) {
	claims, err := ParseClaims(signToken(t, validClaims(), testConfig.Secret), testConfig)
	require.NoError(t, err)
	require.Equal(t, "recruiter-1", claims.Subject)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.True(t, claims.HasScope(ScopeCandidatesRead))
	require.False(t, claims.HasScope(ScopeCandidatesWrite))
	require.True(t, claims.HasAnyScope(ScopeCandidatesWrite, ScopeRequisitionsWrite))
}

func TestParseClaimsAcceptsSpaceDelimitedScopes(t *testing.T) {
	raw := validClaims()
	raw["scopes"] = "candidates:read  candidates:write"

	claims, err := ParseClaims(signToken(t, raw, testConfig.Secret), testConfig)
	require.NoError(t, err)
	require.Len(t, claims.Scopes, 2)
}

func TestParseClaimsRejectsBadTokens(t *testing.T) {
	_, err := ParseClaims("", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = ParseClaims(signToken(t, validClaims(), "other-secret"), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	_, err = ParseClaims(signToken(t, wrongIssuer, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noTenant := validClaims()
	delete(noTenant, "tenant_id")
	_, err = ParseClaims(signToken(t, noTenant, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = ParseClaims(signToken(t, expired, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareStoresClaims(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testConfig.Secret))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "tenant-1", seen.TenantID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	handler := NewMiddleware(testConfig).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/candidates", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	req.Header.Set("Authorization", "Basic abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	handler := NewMiddleware(testConfig).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
