package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningFailure means the session signing key is missing or unusable.
var ErrSigningFailure = errors.New("session signing failure")

// Cookie names used by the browser session layer. The prefixed name is only
// accepted by browsers over HTTPS.
const (
	SessionCookieName       = "next-auth.session-token"
	SecureSessionCookieName = "__Secure-next-auth.session-token"

	DefaultSessionLifetime = 30 * 24 * time.Hour
)

// SessionMinter produces browser session cookies for verified users.
type SessionMinter struct {
	secret   []byte
	lifetime time.Duration
	secure   bool
	now      func() time.Time
}

// MintedSession is a signed session ready to be attached to a response.
type MintedSession struct {
	Token  string
	Cookie *http.Cookie
	Target string
	Claims models.SessionCredential
}

func NewSessionMinter(secret []byte, lifetime time.Duration, secure bool) *SessionMinter {
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &SessionMinter{
		secret:   secret,
		lifetime: lifetime,
		secure:   secure,
		now:      time.Now,
	}
}

func (m *SessionMinter) WithClock(now func() time.Time) *SessionMinter {
	m.now = now
	return m
}

func (m *SessionMinter) CookieName() string {
	if m.secure {
		return SecureSessionCookieName
	}
	return SessionCookieName
}

// Mint signs a session credential for user and builds the cookie and the
// redirect target, which defaults to "/".
func (m *SessionMinter) Mint(user *models.User, redirectTarget string) (*MintedSession, error) {
	if len(m.secret) == 0 {
		return nil, ErrSigningFailure
	}

	now := m.now()
	claims := models.SessionCredential{
		Sub:       user.ID,
		ID:        user.ID,
		Name:      user.DisplayName,
		Username:  user.Username,
		Role:      user.Role,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	if redirectTarget == "" {
		redirectTarget = "/"
	}

	return &MintedSession{
		Token: token,
		Cookie: &http.Cookie{
			Name:     m.CookieName(),
			Value:    token,
			Path:     "/",
			MaxAge:   int(m.lifetime / time.Second),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		},
		Target: redirectTarget,
		Claims: claims,
	}, nil
}

// Parse verifies a session token minted with the same secret.
func (m *SessionMinter) Parse(token string) (*models.SessionCredential, error) {
	claims := &models.SessionCredential{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
