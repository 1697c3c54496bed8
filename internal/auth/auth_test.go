package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerifyReadsBothScopeForms(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret, Issuer: "bailey"})
	token := signToken(t, jwt.MapClaims{
		"sub":    "owner",
		"iss":    "bailey",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeDashboardRead, ScopeSyncTrigger},
	})

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "owner", claims.Subject)
	require.True(t, claims.HasScope(ScopeSyncTrigger))
	require.False(t, claims.HasScope(ScopeDashboardWrite))

	spaced := signToken(t, jwt.MapClaims{
		"sub":   "owner",
		"iss":   "bailey",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": "  dashboard:read   dashboard:write ",
	})
	claims, err = v.Verify(spaced)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeDashboardWrite))
	require.Len(t, claims.Scopes, 2)

	var none *Claims
	require.False(t, none.HasScope(ScopeDashboardRead))
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	v := NewVerifier(Config{Secret: testSecret, Issuer: "bailey"})

	_, err := v.Verify("  ")
	require.ErrorIs(t, err, ErrMissingToken)

	cases := map[string]string{
		"expired":      signToken(t, jwt.MapClaims{"sub": "owner", "iss": "bailey", "exp": time.Now().Add(-time.Hour).Unix()}),
		"wrong issuer": signToken(t, jwt.MapClaims{"sub": "owner", "iss": "other", "exp": time.Now().Add(time.Hour).Unix()}),
		"no expiry":    signToken(t, jwt.MapClaims{"sub": "owner", "iss": "bailey"}),
		"no subject":   signToken(t, jwt.MapClaims{"iss": "bailey", "exp": time.Now().Add(time.Hour).Unix()}),
		"bad scopes":   signToken(t, jwt.MapClaims{"sub": "owner", "iss": "bailey", "exp": time.Now().Add(time.Hour).Unix(), "scopes": 7}),
		"garbage":      "not.a.jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "owner", "iss": "bailey", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := other.SignedString([]byte("someone-else"))
	require.NoError(t, err)
	_, err = v.Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	mw := NewMiddleware(Config{Secret: testSecret})
	var seen *Claims
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	serve := func(method, path, authorization string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, serve(http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusNoContent, serve(http.MethodOptions, "/v1/dashboard", "").Code)
	require.Nil(t, seen)

	require.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/v1/dashboard", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/v1/dashboard", "Basic abc").Code)

	token := signToken(t, jwt.MapClaims{"sub": "owner", "exp": time.Now().Add(time.Hour).Unix()})
	rec := serve(http.MethodGet, "/v1/dashboard", "bearer "+token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "owner", seen.Subject)
}

func TestMiddlewareRejectionBody(t *testing.T) {
	handler := NewMiddleware(Config{Secret: testSecret}).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	expired := signToken(t, jwt.MapClaims{"sub": "owner", "exp": time.Now().Add(-time.Hour).Unix()})
	for authorization, detail := range map[string]string{
		"":                  "missing bearer token",
		"Bearer " + expired: "invalid bearer token",
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, map[string]string{"type": "unauthorized", "detail": detail}, body)
		require.NotContains(t, rec.Body.String(), "expired")
	}
}
