package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a bearer token can fail verification.
var ErrInvalidToken = errors.New("invalid token")

// BearerClaims is the claim set the mobile login endpoint signs.
type BearerClaims struct {
	jwt.RegisteredClaims
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// BearerVerifier checks mobile bearer tokens against the shared mobile secret.
type BearerVerifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

func NewBearerVerifier(secret []byte, leeway time.Duration) *BearerVerifier {
	return &BearerVerifier{
		secret: secret,
		leeway: leeway,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (v *BearerVerifier) WithClock(now func() time.Time) *BearerVerifier {
	v.now = now
	return v
}

// Verify validates the signature and expiry of token and returns the
// identity it carries. All failures are reported as ErrInvalidToken.
func (v *BearerVerifier) Verify(token string) (*models.BearerIdentity, error) {
	if token == "" || len(v.secret) == 0 {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &BearerClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods(hmacMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*BearerClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return &models.BearerIdentity{
		UserID:      claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.Name,
		Role:        claims.Role,
	}, nil
}

// BearerFromRequest returns the bearer token from the Authorization header,
// or from the token query parameter when no header is present.
func BearerFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// BearerSigner issues tokens in the mobile claim format. The service itself
// only verifies bearer tokens; the signer backs tests and local tooling.
type BearerSigner struct {
	secret []byte
	now    func() time.Time
}

func NewBearerSigner(secret []byte) *BearerSigner {
	return &BearerSigner{secret: secret, now: time.Now}
}

func (s *BearerSigner) Sign(identity models.BearerIdentity, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSigningFailure
	}

	now := s.now()
	claims := BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   identity.UserID,
		Username: identity.Username,
		Name:     identity.DisplayName,
		Role:     identity.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return token, nil
}
