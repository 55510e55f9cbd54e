// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

// Registry remembers revoked session tokens until they would have expired
// anyway. Entries are keyed by the SHA-256 of the raw token.
type Registry interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

const revokedKeyPrefix = "revoked:"

type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Revoke(
	ctx context.Context,
	token string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := revokedKeyPrefix + core.HashToken(token)
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := revokedKeyPrefix + core.HashToken(token)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	return exists > 0, nil
}

// MemoryRegistry is process-local. A token revoked on one replica is still
// accepted by the others.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRegistry) Revoke(
	_ context.Context,
	token string,
	expiresAt time.Time,
) error {
	if !expiresAt.After(m.now()) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[core.HashToken(token)] = expiresAt
	return nil
}

func (m *MemoryRegistry) IsRevoked(_ context.Context, token string) (bool, error) {
	key := core.HashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[key]
	if !ok {
		return false, nil
	}

	if !expiresAt.After(m.now()) {
		delete(m.entries, key)
		return false, nil
	}

	return true, nil
}

func (m *MemoryRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunSweeper drops expired entries every interval until ctx is done.
func (m *MemoryRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryRegistry) sweep() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, expiresAt := range m.entries {
		if !expiresAt.After(now) {
			delete(m.entries, key)
		}
	}
}
