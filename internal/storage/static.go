package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/academyreg/handoff/internal/models"
	"gopkg.in/yaml.v3"
)

// StaticStorage serves users from a YAML directory file loaded at startup:
//
//	users:
//	  - id: u1
//	    username: jdoe
//	    name: Jane Doe
//	    role: STAFF
type StaticStorage struct {
	users map[string]models.User
}

type staticFile struct {
	Users []models.User `yaml:"users"`
}

func NewStaticStorage(path string) (*StaticStorage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return ParseStaticUsers(data)
}

// ParseStaticUsers builds a StaticStorage from YAML content.
func ParseStaticUsers(data []byte) (*StaticStorage, error) {
	var file staticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	users := make(map[string]models.User, len(file.Users))
	for _, u := range file.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user %q has no id", u.Username)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s has unknown role %q", u.ID, u.Role)
		}
		if _, dup := users[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %s", u.ID)
		}
		users[u.ID] = u
	}

	return &StaticStorage{users: users}, nil
}

func (s *StaticStorage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user, exists := s.users[id]
	if !exists {
		return nil, nil
	}
	return &user, nil
}

func (s *StaticStorage) Ping(ctx context.Context) error {
	return nil
}
