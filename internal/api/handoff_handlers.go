package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/academyreg/handoff/internal/auth"
	"github.com/academyreg/handoff/internal/handoff"
)

type HandoffHandlers struct {
	service *handoff.Service
}

func NewHandoffHandlers(service *handoff.Service) *HandoffHandlers {
	return &HandoffHandlers{
		service: service,
	}
}

// ExchangeHandler trades a mobile bearer token for a handoff code.
// GET  /api/mobile/web-auth?token=<jwt>&redirect=/staff/scan
// POST /api/mobile/web-auth {"token": "...", "redirect": "/staff/scan"}
// An Authorization: Bearer header takes precedence over token fields.
func (hh *HandoffHandlers) ExchangeHandler(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerFromRequest(r)
	redirect := r.URL.Query().Get("redirect")

	if r.Method == http.MethodPost {
		var request struct {
			Token    string `json:"token"`
			Redirect string `json:"redirect"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if token == "" {
			token = request.Token
		}
		if request.Redirect != "" {
			redirect = request.Redirect
		}
	}

	if token == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}

	result, err := hh.service.Exchange(r.Context(), token, redirect)
	if err != nil {
		hh.writeExchangeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"code":      result.Code,
		"signinUrl": result.SigninURL,
		"expiresAt": result.ExpiresAt,
	})
}

func (hh *HandoffHandlers) writeExchangeError(w http.ResponseWriter, err error) {
	var limited *handoff.RateLimitError

	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, handoff.ErrForbiddenRole):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, handoff.ErrInvalidRedirect):
		writeError(w, http.StatusBadRequest, "Invalid redirect")
	case errors.Is(err, handoff.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
	default:
		writeError(w, http.StatusInternalServerError, "Authentication failed")
	}
}

// SigninHandler redeems a handoff code and lands the browser on its target
// with a session cookie, or on the sign-in error page.
// GET /api/mobile/signin?code=<code>
func (hh *HandoffHandlers) SigninHandler(w http.ResponseWriter, r *http.Request) {
	hh.CompleteSignin(w, r, r.URL.Query().Get("code"))
}

// CompleteSignin is shared by every entry point that accepts a handoff code.
func (hh *HandoffHandlers) CompleteSignin(w http.ResponseWriter, r *http.Request, code string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")

	minted, err := hh.service.Complete(r.Context(), code)
	if err != nil {
		reason := handoff.Reason(err)
		if reason == handoff.ReasonServerError {
			slog.Error("Mobile sign-in failed", "error", err)
		}
		http.Redirect(w, r, hh.service.ErrorURL(reason), http.StatusFound)
		return
	}

	http.SetCookie(w, minted.Cookie)
	http.Redirect(w, r, minted.Target, http.StatusFound)
}
