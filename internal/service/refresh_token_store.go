package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshTokenStore registra los jti de refresh emitidos a una consola.
// Un jti ausente o vencido equivale a una sesion revocada.
type RefreshTokenStore interface {
	Store(jti, userID string, ttl time.Duration) error
	Exists(jti string) (bool, error)
	Revoke(jti string) error
}

// refreshEntry asocia el jti con su dueno y su vencimiento. El dueno queda
// registrado para poder auditar a quien pertenecia una sesion revocada.
type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

type memoryRefreshTokenStore struct {
	mu      sync.RWMutex
	entries map[string]refreshEntry
}

// NewMemoryRefreshTokenStore sirve para desarrollo y tests: las sesiones
// emitidas mueren con el proceso.
func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		entries: make(map[string]refreshEntry),
	}
}

func (m *memoryRefreshTokenStore) Store(jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.entries[jti] = refreshEntry{
		userID:    userID,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (m *memoryRefreshTokenStore) Exists(jti string) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[jti]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, jti)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (m *memoryRefreshTokenStore) Revoke(jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, jti)
	return nil
}

// sweepLocked descarta entradas vencidas al emitir una nueva, para que el
// mapa no crezca con sesiones muertas entre reinicios largos.
func (m *memoryRefreshTokenStore) sweepLocked() {
	now := time.Now().UTC()
	for jti, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, jti)
		}
	}
}

// sessionRefreshPrefix separa el espacio de claves de sesiones del que usa el
// rate limiter de login ("login:rl:") sobre el mismo redis.
const sessionRefreshPrefix = "session:refresh:"

const redisStoreTimeout = 500 * time.Millisecond

type redisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedisRefreshTokenStore persiste los jti en redis con TTL nativo; el
// vencimiento lo maneja redis y Exists solo consulta la clave.
func NewRedisRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{client: client}
}

func (r *redisRefreshTokenStore) Store(jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisStoreTimeout)
	defer cancel()
	return r.client.Set(ctx, sessionRefreshPrefix+jti, userID, ttl).Err()
}

func (r *redisRefreshTokenStore) Exists(jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisStoreTimeout)
	defer cancel()
	n, err := r.client.Exists(ctx, sessionRefreshPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisRefreshTokenStore) Revoke(jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisStoreTimeout)
	defer cancel()
	return r.client.Del(ctx, sessionRefreshPrefix+jti).Err()
}
