// Package session issues and verifies the HS256 JWTs kept in the session
// cookie. A token carries only the user id, as its subject.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
)

var (
	ErrNoSession   = errors.New("no session")
	ErrSignInvalid = errors.New("sign invalid")
	ErrSignExpired = errors.New("sign expired")
)

type Manager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(cfg configs.SessionConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.Secret),
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string { return m.cookieName }
func (m *Manager) Secure() bool       { return m.secure }

// Issue returns the token for userID and the moment it stops being valid.
// A zero ttl issues a token without expiry and a zero time.
func (m *Manager) Issue(userID int64) (string, time.Time, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}

	var expires time.Time
	if m.ttl > 0 {
		expires = now.Add(m.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return token, expires, nil
}

// Parse returns the user id of a token produced by Issue.
func (m *Manager) Parse(token string) (int64, error) {
	if token == "" {
		return 0, ErrNoSession
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return 0, mapJWTError(err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrSignInvalid
	}
	return userID, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrSignExpired
	}
	return fmt.Errorf("%w: %v", ErrSignInvalid, err)
}
