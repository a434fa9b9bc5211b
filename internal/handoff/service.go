// Package handoff turns a verified mobile bearer identity into a browser
// session by way of a short-lived, single-use code.
package handoff

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/academyreg/handoff/internal/auth"
	"github.com/academyreg/handoff/internal/metrics"
	"github.com/academyreg/handoff/internal/models"
	"github.com/academyreg/handoff/internal/storage"
)

const (
	DefaultCodeTTL      = 2 * time.Minute
	DefaultStoreTimeout = 5 * time.Second
	DefaultSigninPath   = "/mobile-signin"

	// codeBytes gives 256 bits of entropy, so no uniqueness check is done.
	codeBytes = 32
)

// RateLimiter limits how often a user may request codes.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type Config struct {
	CodeTTL      time.Duration
	StoreTimeout time.Duration
	SigninPath   string
	// PublicURL, when set, makes sign-in URLs absolute.
	PublicURL    string
	AllowedRoles models.RoleSet
}

type Service struct {
	verifier *auth.BearerVerifier
	minter   *auth.SessionMinter
	codes    storage.CodeStorage
	users    storage.UserStorage
	limiter  RateLimiter
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

func NewService(verifier *auth.BearerVerifier, minter *auth.SessionMinter, codes storage.CodeStorage, users storage.UserStorage, cfg Config) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.StoreTimeout <= 0 || cfg.StoreTimeout >= cfg.CodeTTL {
		cfg.StoreTimeout = min(DefaultStoreTimeout, cfg.CodeTTL/2)
	}
	if cfg.SigninPath == "" {
		cfg.SigninPath = DefaultSigninPath
	}
	if cfg.AllowedRoles == nil {
		cfg.AllowedRoles = models.NewRoleSet(models.RoleStaff, models.RoleTeacher, models.RoleAdmin)
	}

	return &Service{
		verifier: verifier,
		minter:   minter,
		codes:    codes,
		users:    users,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithRateLimiter enables per-user limiting of code issuance.
func (s *Service) WithRateLimiter(limiter RateLimiter) *Service {
	s.limiter = limiter
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Issue stores a fresh code for userID that redeems to redirectTarget.
func (s *Service) Issue(ctx context.Context, userID, redirectTarget string) (*models.HandoffCode, error) {
	code, err := generateRandomCode(codeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate handoff code: %w", err)
	}

	now := s.now()
	hc := &models.HandoffCode{
		Code:           code,
		UserID:         userID,
		RedirectTarget: redirectTarget,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.cfg.CodeTTL),
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	err = s.codes.PutCode(ctx, code, hc.Payload(), s.cfg.CodeTTL)
	s.metrics.ObserveStore("put", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.CodeIssued()
	return hc, nil
}

// Redeem atomically consumes code. It returns ErrInvalidCode when the code is
// unknown, expired or already used, and ErrStoreUnavailable when the store
// fails or does not answer within the store timeout.
func (s *Service) Redeem(ctx context.Context, code string) (*models.HandoffPayload, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	payload, err := s.codes.TakeCode(ctx, code)
	s.metrics.ObserveStore("take", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if payload == nil {
		return nil, ErrInvalidCode
	}
	return payload, nil
}

// ExchangeResult is returned to the mobile client.
type ExchangeResult struct {
	Code      string    `json:"code"`
	SigninURL string    `json:"signinUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Exchange verifies a bearer token and issues a code that lands the browser
// on redirectTarget.
func (s *Service) Exchange(ctx context.Context, token, redirectTarget string) (*ExchangeResult, error) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.metrics.ExchangeRejected("invalid_token")
		return nil, err
	}
	if !models.HasRole(identity, s.cfg.AllowedRoles) {
		s.metrics.ExchangeRejected("forbidden_role")
		return nil, ErrForbiddenRole
	}

	target, err := ValidateRedirect(redirectTarget)
	if err != nil {
		s.metrics.ExchangeRejected("invalid_redirect")
		return nil, err
	}

	if _, err := s.findUser(ctx, identity.UserID); err != nil {
		s.metrics.ExchangeRejected(Reason(err))
		return nil, err
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, identity.UserID)
		if err != nil {
			// Fail open; the limiter is a convenience, not a security boundary.
			slog.Warn("Rate limiter unavailable", "user_id", identity.UserID, "error", err)
			s.metrics.RateLimitFailOpen()
		} else if !allowed {
			s.metrics.ExchangeRejected("rate_limited")
			return nil, &RateLimitError{RetryAfter: retryAfter}
		}
	}

	hc, err := s.Issue(ctx, identity.UserID, target)
	if err != nil {
		slog.Error("Failed to issue handoff code", "user_id", identity.UserID, "error", err)
		return nil, err
	}

	slog.Info("Issued handoff code", "user_id", identity.UserID, "code", codePrefix(hc.Code), "redirect", target, "state", models.HandoffStatePending)

	return &ExchangeResult{
		Code:      hc.Code,
		SigninURL: s.SigninURL(hc.Code),
		ExpiresAt: hc.ExpiresAt,
	}, nil
}

// Complete redeems code, re-checks the user and mints a browser session.
// A consumed code stays consumed whatever happens afterwards.
func (s *Service) Complete(ctx context.Context, code string) (*auth.MintedSession, error) {
	minted, err := s.complete(ctx, code)
	if err != nil {
		s.metrics.Redeemed(Reason(err))
		return nil, err
	}
	s.metrics.Redeemed("ok")
	return minted, nil
}

func (s *Service) complete(ctx context.Context, code string) (*auth.MintedSession, error) {
	payload, err := s.Redeem(ctx, code)
	if err != nil {
		switch Reason(err) {
		case ReasonServerError:
			slog.Error("Handoff redemption failed", "code", codePrefix(code), "error", err)
		case ReasonInvalidCode:
			slog.Info("Handoff code invalid or expired", "code", codePrefix(code))
		}
		return nil, err
	}

	user, err := s.findUser(ctx, payload.UserID)
	if err != nil {
		if Reason(err) == ReasonServerError {
			slog.Error("User lookup failed during handoff", "user_id", payload.UserID, "code", codePrefix(code), "error", err)
		} else {
			slog.Warn("Handoff user no longer exists", "user_id", payload.UserID, "code", codePrefix(code), "state", models.HandoffStateConsumed)
		}
		return nil, err
	}

	minted, err := s.minter.Mint(user, payload.RedirectTarget)
	if err != nil {
		slog.Error("Failed to mint browser session", "user_id", user.ID, "error", err)
		return nil, err
	}

	slog.Info("Handoff completed", "user_id", user.ID, "code", codePrefix(code), "redirect", minted.Target, "state", models.HandoffStateConsumed)
	return minted, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SigninURL builds the browser URL that redeems code.
func (s *Service) SigninURL(code string) string {
	return s.buildURL(s.cfg.SigninPath, "code", code)
}

// ErrorURL builds the sign-in page URL that reports reason.
func (s *Service) ErrorURL(reason string) string {
	return s.buildURL(s.cfg.SigninPath, "error", reason)
}

func (s *Service) buildURL(path, key, value string) string {
	u := &url.URL{Path: path}
	if s.cfg.PublicURL != "" {
		base, err := url.Parse(s.cfg.PublicURL)
		if err == nil {
			u = base.JoinPath(path)
		}
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String()
}

// ValidateRedirect accepts only same-origin relative paths. An empty target
// becomes "/".
func ValidateRedirect(target string) (string, error) {
	if target == "" {
		return "/", nil
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return "", ErrInvalidRedirect
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", ErrInvalidRedirect
	}
	return target, nil
}

// RateLimitError reports a rate limited exchange.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// codePrefix is the only part of a code that may be logged.
func codePrefix(code string) string {
	if len(code) <= 8 {
		return strings.Repeat("*", len(code))
	}
	return code[:8] + "..."
}
