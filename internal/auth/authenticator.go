package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goevery/courier/internal/ierr"
	"github.com/golang-jwt/jwt/v5"
)

const (
	Audience = "courier"

	ScopeRead  = "read"
	ScopeWrite = "write"
)

type Claims struct {
	jwt.RegisteredClaims
	Scope []string `json:"scope,omitempty"`
}

type Authentication struct {
	Subject string
	Scope   []string
	IsAdmin bool
}

func (a *Authentication) CanRead() bool {
	return a.IsAdmin || slices.Contains(a.Scope, ScopeRead)
}

func (a *Authentication) CanWrite() bool {
	return a.IsAdmin || slices.Contains(a.Scope, ScopeWrite)
}

type contextKey string

const authenticationKey contextKey = "authentication"

func WithAuthentication(ctx context.Context, auth *Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey, auth)
}

func AuthenticationFromContext(ctx context.Context) (*Authentication, bool) {
	auth, ok := ctx.Value(authenticationKey).(*Authentication)
	return auth, ok
}

type Authenticator struct {
	secret    []byte
	apiKeys   []string
	jwtParser *jwt.Parser
}

func NewAuthenticator(secret string, apiKeys []string) *Authenticator {
	jwtParser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience(Audience),
	)

	return &Authenticator{
		secret:    []byte(secret),
		apiKeys:   apiKeys,
		jwtParser: jwtParser,
	}
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("unexpected signing method"))
	}
	return a.secret, nil
}

func (a *Authenticator) AuthenticateJWT(tokenString string) (*Authentication, error) {
	claims := Claims{}

	_, err := a.jwtParser.ParseWithClaims(tokenString, &claims, a.keyFunc)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid subject claim"))
	}

	if len(claims.Scope) == 0 {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("scope cannot be empty"))
	}

	return &Authentication{
		Subject: subject,
		Scope:   claims.Scope,
		IsAdmin: false,
	}, nil
}

func (a *Authenticator) AuthenticateAPIKey(apiKey string) (*Authentication, error) {
	for _, key := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			return &Authentication{
				Subject: "api",
				Scope:   []string{ScopeRead, ScopeWrite},
				IsAdmin: true,
			}, nil
		}
	}

	return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid api key"))
}

// Authenticate accepts either a JWT or an API key. Anything shaped like a
// compact JWS is treated as a JWT.
func (a *Authenticator) Authenticate(credential string) (*Authentication, error) {
	if credential == "" {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing credentials"))
	}

	if strings.Count(credential, ".") == 2 {
		return a.AuthenticateJWT(credential)
	}

	return a.AuthenticateAPIKey(credential)
}

// AuthenticateRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter used by websocket clients.
func (a *Authenticator) AuthenticateRequest(r *http.Request) (*Authentication, error) {
	credential, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		credential = r.URL.Query().Get("token")
	}

	return a.Authenticate(strings.TrimSpace(credential))
}
