package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseToken(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"email":   "driver@swiftparcel.com",
		"name":    "Driver One",
		"role":    "driver",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	claims, err := ParseToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "driver", claims.Role)
	assert.Equal(t, "Driver One", claims.Name)
}

func TestParseTokenWrongSecret(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": "u1",
		"role":    "driver",
	})

	_, err := ParseToken(tokenString)
	assert.Error(t, err)
}

func TestParseTokenMissingClaims(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	// no user_id
	tokenString := signToken(t, testSecret, jwt.MapClaims{"role": "driver"})
	_, err := ParseToken(tokenString)
	assert.Error(t, err)

	// no role
	tokenString = signToken(t, testSecret, jwt.MapClaims{"user_id": "u1"})
	_, err = ParseToken(tokenString)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"role":    "driver",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := ParseToken(tokenString)
	assert.Error(t, err)
}

func authedRequest(t *testing.T, role string) *http.Request {
	t.Helper()
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "u1",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	return req
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	handler := Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r)
		require.True(t, ok)
		assert.Equal(t, "u1", claims.UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, "admin"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// missing header
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// malformed header
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(RequireRole("admin")(ok))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, "admin"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, "driver"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyRole(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(RequireAnyRole("driver", "admin")(ok))

	for _, role := range []string{"driver", "admin"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, role))
		assert.Equal(t, http.StatusNoContent, rec.Code, "role %s", role)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, "partner"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
