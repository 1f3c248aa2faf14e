package session

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Credential struct {
	Token      string
	Subject    string
	ExpireTime time.Time
}

// Expired reports whether the credential carries an expiry that has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpireTime.IsZero() && !now.Before(c.ExpireTime)
}

// Inspect reads the claims of a JWT session token without verifying its
// signature; the server does that. Opaque tokens yield a credential without
// subject or expiry.
func Inspect(token string) Credential {
	credential := Credential{Token: token}

	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return credential
	}

	credential.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		credential.ExpireTime = claims.ExpiresAt.Time
	}

	return credential
}

// Store reads the session token once per call. Missing, empty and expired
// tokens are all reported as absent.
type Store struct {
	logger *zap.Logger
	clock  clockwork.Clock
	read   func() (string, error)
}

// NewFileStore reads the token from path, the persisted session written by
// the login flow.
func NewFileStore(logger *zap.Logger, clock clockwork.Clock, path string) *Store {
	return &Store{
		logger: logger.With(zap.String("path", path)),
		clock:  clock,
		read: func() (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}

			return string(data), nil
		},
	}
}

func NewMemoryStore(logger *zap.Logger, clock clockwork.Clock, memory *Memory) *Store {
	return &Store{
		logger: logger,
		clock:  clock,
		read: func() (string, error) {
			return memory.Get(), nil
		},
	}
}

func (s *Store) Token() (string, bool) {
	credential, ok := s.Credential()
	if !ok {
		return "", false
	}

	return credential.Token, true
}

func (s *Store) Credential() (Credential, bool) {
	raw, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read session token", zap.Error(err))
		}

		return Credential{}, false
	}

	token := strings.TrimSpace(raw)
	if token == "" {
		return Credential{}, false
	}

	credential := Inspect(token)
	if credential.Expired(s.clock.Now()) {
		s.logger.Warn("session token expired",
			zap.String("subject", credential.Subject),
			zap.Time("expireTime", credential.ExpireTime))

		return Credential{}, false
	}

	return credential, true
}

// Memory is an in-process session slot, used when the token is handed over
// at runtime instead of being persisted.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func (m *Memory) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
}

func (m *Memory) Clear() {
	m.Set("")
}

func (m *Memory) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.token
}
