package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRedeemer struct {
	codes []string
}

func (rr *recordingRedeemer) CompleteSignin(w http.ResponseWriter, r *http.Request, code string) {
	rr.codes = append(rr.codes, code)
	http.Redirect(w, r, "/staff/scan", http.StatusFound)
}

func TestSigninPageHandler_DelegatesCode(t *testing.T) {
	redeemer := &recordingRedeemer{}
	handlers, err := NewSigninUIHandlers(redeemer)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handlers.SigninPageHandler(rec, httptest.NewRequest(http.MethodGet, "/mobile-signin?code=abc123", nil))

	assert.Equal(t, []string{"abc123"}, redeemer.codes)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/staff/scan", rec.Header().Get("Location"))
}

func TestSigninPageHandler_ErrorPage(t *testing.T) {
	redeemer := &recordingRedeemer{}
	handlers, err := NewSigninUIHandlers(redeemer)
	require.NoError(t, err)

	cases := map[string]string{
		"/mobile-signin":                      "No authentication code provided",
		"/mobile-signin?error=invalid_code":   "Invalid or expired code. Please try again from the mobile app.",
		"/mobile-signin?error=user_not_found": "User not found. Please contact support.",
		"/mobile-signin?error=server_error":   "Server error occurred. Please try again.",
		"/mobile-signin?error=bogus":          "Unknown error occurred",
	}
	for target, message := range cases {
		rec := httptest.NewRecorder()
		handlers.SigninPageHandler(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Authentication Failed")
		assert.Contains(t, rec.Body.String(), message, target)
	}
	assert.Empty(t, redeemer.codes)
}

func TestSigninPageHandler_EscapesReason(t *testing.T) {
	handlers, err := NewSigninUIHandlers(&recordingRedeemer{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handlers.SigninPageHandler(rec, httptest.NewRequest(http.MethodGet, `/mobile-signin?error=%22%3E%3Cscript%3E`, nil))

	assert.NotContains(t, rec.Body.String(), "<script>")
}
