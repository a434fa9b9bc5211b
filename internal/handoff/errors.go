package handoff

import (
	"errors"
)

var (
	ErrMissingCode      = errors.New("no handoff code provided")
	ErrInvalidCode      = errors.New("invalid or expired handoff code")
	ErrUserNotFound     = errors.New("user not found")
	ErrStoreUnavailable = errors.New("handoff store unavailable")
	ErrForbiddenRole    = errors.New("role not allowed to open web pages")
	ErrInvalidRedirect  = errors.New("redirect must be a relative path")
	ErrRateLimited      = errors.New("too many handoff requests")
)

// Reasons carried in the error query parameter of the sign-in page.
const (
	ReasonNoCode       = "no_code"
	ReasonInvalidCode  = "invalid_code"
	ReasonUserNotFound = "user_not_found"
	ReasonServerError  = "server_error"
)

// Reason maps a redemption error to its machine-readable reason. Store,
// signing and unrecognised failures are all server errors.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCode):
		return ReasonNoCode
	case errors.Is(err, ErrInvalidCode):
		return ReasonInvalidCode
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	}
	return ReasonServerError
}
