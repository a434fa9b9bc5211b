package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/academyreg/handoff/internal/handoff"
)

//go:embed templates/*.html
var templatesFS embed.FS

// CodeRedeemer completes a sign-in for a handoff code.
type CodeRedeemer interface {
	CompleteSignin(w http.ResponseWriter, r *http.Request, code string)
}

type SigninUIHandlers struct {
	redeemer  CodeRedeemer
	templates *template.Template
}

func NewSigninUIHandlers(redeemer CodeRedeemer) (*SigninUIHandlers, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	return &SigninUIHandlers{
		redeemer:  redeemer,
		templates: templates,
	}, nil
}

// SigninPageHandler is the page a deep link opens.
// GET /mobile-signin?code=<code> redeems the code.
// GET /mobile-signin?error=<reason> explains why a sign-in failed.
func (uh *SigninUIHandlers) SigninPageHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if code := q.Get("code"); code != "" {
		uh.redeemer.CompleteSignin(w, r, code)
		return
	}

	reason := q.Get("error")
	if reason == "" {
		reason = handoff.ReasonNoCode
	}
	uh.renderErrorPage(w, reason)
}

func errorMessage(reason string) string {
	switch reason {
	case handoff.ReasonNoCode:
		return "No authentication code provided"
	case handoff.ReasonInvalidCode:
		return "Invalid or expired code. Please try again from the mobile app."
	case handoff.ReasonUserNotFound:
		return "User not found. Please contact support."
	case handoff.ReasonServerError:
		return "Server error occurred. Please try again."
	}
	return "Unknown error occurred"
}

func (uh *SigninUIHandlers) renderErrorPage(w http.ResponseWriter, reason string) {
	data := struct {
		Title   string
		Message string
		Reason  string
	}{
		Title:   "Authentication Failed",
		Message: errorMessage(reason),
		Reason:  reason,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := uh.templates.ExecuteTemplate(w, "signin.html", data); err != nil {
		slog.Error("Failed to render sign-in template", "error", err)
	}
}
