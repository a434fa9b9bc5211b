package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/academyreg/handoff/internal/models"
)

// FilesystemStorage reads users from <basePath>/users/<id>.json.
type FilesystemStorage struct {
	basePath string
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	usersPath := filepath.Join(basePath, "users")
	if err := os.MkdirAll(usersPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create users path: %w", err)
	}

	return &FilesystemStorage{
		basePath: basePath,
	}, nil
}

func (f *FilesystemStorage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validObjectID(id) {
		return nil, nil
	}

	userPath := filepath.Join(f.basePath, "users", id+".json")

	data, err := os.ReadFile(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user file: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// SaveUser writes a user file. The handoff flow never writes users; this
// exists for seeding and tests.
func (f *FilesystemStorage) SaveUser(ctx context.Context, user *models.User) error {
	if !validObjectID(user.ID) {
		return fmt.Errorf("invalid user id %q", user.ID)
	}

	userPath := filepath.Join(f.basePath, "users", user.ID+".json")

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := os.WriteFile(userPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}

	return nil
}

func (f *FilesystemStorage) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Join(f.basePath, "users"))
	return err
}

// validObjectID rejects ids that would escape the users directory or prefix.
func validObjectID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
