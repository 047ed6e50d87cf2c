package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Subject(r.Context())))
	})
}

func serve(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestAuthenticatorSetsSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "credit", Audience: "creditd"}, nil)
	h := auth.Middleware()(subjectEcho())

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "cosmos1alice",
		"iss": "credit",
		"aud": []string{"other", "creditd"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	res := serve(h, "/v1/execute", token)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "cosmos1alice", res.Body.String())
}

func TestAuthenticatorRejects(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "credit"}, nil)
	h := auth.Middleware()(subjectEcho())
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"missing token": "",
		"wrong secret":  signToken(t, "other", jwt.MapClaims{"sub": "a", "iss": "credit", "exp": exp}),
		"wrong issuer":  signToken(t, testSecret, jwt.MapClaims{"sub": "a", "iss": "evil", "exp": exp}),
		"expired":       signToken(t, testSecret, jwt.MapClaims{"sub": "a", "iss": "credit", "exp": time.Now().Add(-time.Hour).Unix()}),
		"missing sub":   signToken(t, testSecret, jwt.MapClaims{"iss": "credit", "exp": exp}),
		"malformed":     "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusUnauthorized, serve(h, "/v1/execute", token).Code)
		})
	}
}

func TestAuthenticatorScopesAndOptionalPaths(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:        true,
		HMACSecret:     testSecret,
		OptionalPaths:  []string{"/v1/query/"},
		AllowAnonymous: true,
	}, nil)
	h := auth.Middleware("execute")(subjectEcho())

	readOnly := signToken(t, testSecret, jwt.MapClaims{"sub": "cosmos1bob", "scope": "query"})
	require.Equal(t, http.StatusForbidden, serve(h, "/v1/execute", readOnly).Code)

	full := signToken(t, testSecret, jwt.MapClaims{"sub": "cosmos1bob", "scope": []string{"query", "execute"}})
	require.Equal(t, http.StatusOK, serve(h, "/v1/execute", full).Code)

	anonymous := serve(auth.Middleware()(subjectEcho()), "/v1/query/redbank/markets", "")
	require.Equal(t, http.StatusOK, anonymous.Code)
	require.Empty(t, anonymous.Body.String())
}

func TestAuthenticatorDisabled(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	require.Equal(t, http.StatusOK, serve(auth.Middleware()(subjectEcho()), "/v1/execute", "").Code)
}
