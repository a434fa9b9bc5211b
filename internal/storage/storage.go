package storage

import (
	"context"
	"time"

	"github.com/academyreg/handoff/internal/models"
)

// UserStorage is the durable user store. FindUserByID returns (nil, nil)
// when the user does not exist; errors are reserved for storage failures.
type UserStorage interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	Ping(ctx context.Context) error
}

// CodeStorage holds handoff codes. Backends must provide native expiry and
// an atomic take: of any number of concurrent TakeCode calls for the same
// code, at most one returns the payload.
//
// TakeCode returns (nil, nil) when the code is unknown, expired or already
// taken.
type CodeStorage interface {
	PutCode(ctx context.Context, code string, payload *models.HandoffPayload, ttl time.Duration) error
	TakeCode(ctx context.Context, code string) (*models.HandoffPayload, error)
	Ping(ctx context.Context) error
}
