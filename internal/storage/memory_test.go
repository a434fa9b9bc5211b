package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCodeStorage_TakeOnce(t *testing.T) {
	store := NewMemoryCodeStorage()
	ctx := context.Background()

	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/staff/scan"}
	require.NoError(t, store.PutCode(ctx, "abc", payload, 2*time.Minute))

	got, err := store.TakeCode(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *payload, *got)

	got, err = store.TakeCode(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCodeStorage_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCodeStorage().WithClock(clock.Now)
	ctx := context.Background()

	payload := &models.HandoffPayload{UserID: "u1", RedirectTarget: "/"}
	require.NoError(t, store.PutCode(ctx, "abc", payload, 2*time.Minute))

	clock.Advance(3 * time.Minute)

	got, err := store.TakeCode(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCodeStorage_ExpiresExactlyAtDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCodeStorage().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "abc", &models.HandoffPayload{UserID: "u1"}, time.Minute))
	clock.Advance(time.Minute)

	got, err := store.TakeCode(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCodeStorage_PrunesExpiredOnPut(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCodeStorage().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "a", &models.HandoffPayload{UserID: "u1"}, time.Minute))
	require.NoError(t, store.PutCode(ctx, "b", &models.HandoffPayload{UserID: "u2"}, time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, store.PutCode(ctx, "c", &models.HandoffPayload{UserID: "u3"}, time.Minute))

	assert.Equal(t, 1, store.Len())
}

func TestMemoryCodeStorage_ConcurrentTake(t *testing.T) {
	store := NewMemoryCodeStorage()
	ctx := context.Background()
	require.NoError(t, store.PutCode(ctx, "race", &models.HandoffPayload{UserID: "u1"}, time.Minute))

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, _ := store.TakeCode(ctx, "race"); got != nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
