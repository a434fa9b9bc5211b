package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/academyreg/handoff/internal/storage"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	codeStorage storage.CodeStorage
	userStorage storage.UserStorage
}

func NewServer(codeStorage storage.CodeStorage, userStorage storage.UserStorage) *Server {
	return &Server{
		codeStorage: codeStorage,
		userStorage: userStorage,
	}
}

// HealthHandler pings both stores and reports 503 if either is down.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"codeStore": "ok",
		"userStore": "ok",
	}
	var codeErr, userErr error

	var g errgroup.Group
	g.Go(func() error {
		codeErr = s.codeStorage.Ping(ctx)
		return nil
	})
	g.Go(func() error {
		userErr = s.userStorage.Ping(ctx)
		return nil
	})
	g.Wait()

	status := http.StatusOK
	if codeErr != nil {
		slog.Error("Health check failed", "dependency", "codeStore", "error", codeErr)
		checks["codeStore"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if userErr != nil {
		slog.Error("Health check failed", "dependency", "userStore", "error", userErr)
		checks["userStore"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	writeJSON(w, status, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
