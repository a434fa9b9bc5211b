package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "auth:code:"

// takeScript reads and deletes a key in one server-side step, for servers
// older than 6.2 that lack GETDEL.
var takeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	redis.call('DEL', KEYS[1])
end
return v
`)

type RedisCodeStorage struct {
	client    redis.UniversalClient
	useScript bool
}

// NewRedisCodeStorage returns a CodeStorage backed by client. When useScript
// is set, TakeCode uses a Lua script instead of GETDEL.
func NewRedisCodeStorage(client redis.UniversalClient, useScript bool) *RedisCodeStorage {
	return &RedisCodeStorage{
		client:    client,
		useScript: useScript,
	}
}

func (r *RedisCodeStorage) PutCode(ctx context.Context, code string, payload *models.HandoffPayload, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("code ttl must be positive")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff payload: %w", err)
	}

	if err := r.client.Set(ctx, codeKeyPrefix+code, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save handoff code: %w", err)
	}

	return nil
}

func (r *RedisCodeStorage) TakeCode(ctx context.Context, code string) (*models.HandoffPayload, error) {
	key := codeKeyPrefix + code

	var (
		data string
		err  error
	)
	if r.useScript {
		var res any
		res, err = takeScript.Run(ctx, r.client, []string{key}).Result()
		if err == nil {
			s, ok := res.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected take script result %T", res)
			}
			data = s
		}
	} else {
		data, err = r.client.GetDel(ctx, key).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take handoff code: %w", err)
	}

	var payload models.HandoffPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		// The key is gone either way; a corrupt value is not redeemable.
		return nil, fmt.Errorf("failed to unmarshal handoff payload: %w", err)
	}

	return &payload, nil
}

func (r *RedisCodeStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
