package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goevery/courier/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return tokenString
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "customer-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"aud":   "courier",
		"scope": []string{"read"},
	}
}

func TestAuthenticator_AuthenticateJWT(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("valid jwt", func(t *testing.T) {
		tokenString := signToken(t, "test-secret", validClaims())

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, auth)
		assert.Equal(t, "customer-1", auth.Subject)
		assert.Equal(t, []string{"read"}, auth.Scope)
		assert.True(t, auth.CanRead())
		assert.False(t, auth.CanWrite())
		assert.False(t, auth.IsAdmin)
	})

	t.Run("invalid jwt signature", func(t *testing.T) {
		tokenString := signToken(t, "invalid-secret", validClaims())

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.IsType(t, ierr.Error{}, err)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("expired jwt", func(t *testing.T) {
		claims := validClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		tokenString := signToken(t, "test-secret", claims)

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := validClaims()
		claims["aud"] = "dispatch"
		tokenString := signToken(t, "test-secret", claims)

		_, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := validClaims()
		delete(claims, "sub")
		tokenString := signToken(t, "test-secret", claims)

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, err.(ierr.Error).Code)
	})

	t.Run("missing scope", func(t *testing.T) {
		claims := validClaims()
		delete(claims, "scope")
		tokenString := signToken(t, "test-secret", claims)

		auth, err := authenticator.AuthenticateJWT(tokenString)

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, err.(ierr.Error).Code)
	})
}

func TestAuthenticator_AuthenticateAPIKey(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("valid api key", func(t *testing.T) {
		auth, err := authenticator.AuthenticateAPIKey("test-api-key")

		assert.NoError(t, err)
		assert.NotNil(t, auth)
		assert.Equal(t, "api", auth.Subject)
		assert.True(t, auth.IsAdmin)
		assert.True(t, auth.CanRead())
		assert.True(t, auth.CanWrite())
	})

	t.Run("invalid api key", func(t *testing.T) {
		auth, err := authenticator.AuthenticateAPIKey("invalid-api-key")

		assert.Error(t, err)
		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})
}

func TestAuthenticator_AuthenticateRequest(t *testing.T) {
	authenticator := NewAuthenticator("test-secret", []string{"test-api-key"})

	t.Run("bearer api key", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/notifications", nil)
		r.Header.Set("Authorization", "Bearer test-api-key")

		auth, err := authenticator.AuthenticateRequest(r)

		assert.NoError(t, err)
		assert.True(t, auth.IsAdmin)
	})

	t.Run("bearer jwt", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/notifications", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", validClaims()))

		auth, err := authenticator.AuthenticateRequest(r)

		assert.NoError(t, err)
		assert.Equal(t, "customer-1", auth.Subject)
	})

	t.Run("token query parameter", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/stream?token="+signToken(t, "test-secret", validClaims()), nil)

		auth, err := authenticator.AuthenticateRequest(r)

		assert.NoError(t, err)
		assert.Equal(t, "customer-1", auth.Subject)
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/notifications", nil)

		auth, err := authenticator.AuthenticateRequest(r)

		assert.Nil(t, auth)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, err.(ierr.Error).Code)
	})
}
