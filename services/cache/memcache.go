package cache

import (
	"errors"
	"time"

	apperrors "sjsage522/listingwatcher/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache. It lets several
// watcher processes share the listing source's rate-limit block.
type MemcacheService struct {
	client *memcache.Client
	addr   string
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
		addr:   serverAddr,
	}
}

// Ping checks that the memcached server answers
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return apperrors.NewCache(m.addr, "memcached unreachable", err)
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, apperrors.NewCache(m.addr, "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time. Sub-second
// expirations are rounded up so the item does not become permanent.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	secs := int32(expiration / time.Second)
	if expiration > 0 && secs == 0 {
		secs = 1
	}
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: secs,
	})
	if err != nil {
		return apperrors.NewCache(m.addr, "set "+key, err)
	}
	return nil
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return apperrors.NewCache(m.addr, "delete "+key, err)
	}
	return nil
}
