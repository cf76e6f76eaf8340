package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselhub/inbox-sync/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role, name string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:        role,
		DisplayName: name,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe(t *testing.T, authHeader string) (*httptest.ResponseRecorder, model.Identity) {
	t.Helper()
	var got model.Identity
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

func TestAuthValidToken(t *testing.T) {
	token := signToken(t, testSecret, "u1", "student", "Uma")
	rec, identity := authProbe(t, "Bearer "+token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, model.RoleStudent, identity.Role)
	assert.Equal(t, "Uma", identity.DisplayName)
}

func TestAuthMissingHeader(t *testing.T) {
	rec, _ := authProbe(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", "u1", "student", "Uma")
	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthExpiredToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: "student",
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := authProbe(t, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsUnknownRole(t *testing.T) {
	token := signToken(t, testSecret, "u1", "janitor", "Jan")
	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsSystemRole(t *testing.T) {
	token := signToken(t, testSecret, "sys", "system", "System")
	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMalformedHeader(t *testing.T) {
	rec, _ := authProbe(t, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
