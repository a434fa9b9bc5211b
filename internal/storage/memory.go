package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/academyreg/handoff/internal/models"
)

type memoryEntry struct {
	payload   models.HandoffPayload
	expiresAt time.Time
}

// MemoryCodeStorage is an in-process CodeStorage. It is only suitable for a
// single instance; codes do not survive a restart.
type MemoryCodeStorage struct {
	codes map[string]memoryEntry
	mu    sync.Mutex
	now   func() time.Time
}

func NewMemoryCodeStorage() *MemoryCodeStorage {
	return &MemoryCodeStorage{
		codes: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (m *MemoryCodeStorage) WithClock(now func() time.Time) *MemoryCodeStorage {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = now
	return m
}

func (m *MemoryCodeStorage) PutCode(ctx context.Context, code string, payload *models.HandoffPayload, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("code ttl must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)
	m.codes[code] = memoryEntry{
		payload:   *payload,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (m *MemoryCodeStorage) TakeCode(ctx context.Context, code string) (*models.HandoffPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.codes[code]
	if !exists {
		return nil, nil
	}
	delete(m.codes, code)

	if !m.now().Before(entry.expiresAt) {
		return nil, nil
	}

	payload := entry.payload
	return &payload, nil
}

func (m *MemoryCodeStorage) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored codes, expired or not.
func (m *MemoryCodeStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.codes)
}

func (m *MemoryCodeStorage) pruneLocked(now time.Time) {
	for code, entry := range m.codes {
		if !now.Before(entry.expiresAt) {
			delete(m.codes, code)
		}
	}
}
