package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
)

const DefaultMaxEntries = 10000

// MemoryStore is the in-process fallback tier: a bounded map with
// insertion-order eviction. When the store is full, a new key evicts the
// single oldest-inserted entry; recency of access is deliberately ignored.
// Entries carry their own expiry and are dropped lazily on Get.
type MemoryStore struct {
	logger     types.Logger
	maxEntries int
	mu         sync.Mutex
	data       map[string]*memoryEntry
	order      *list.List
}

type memoryEntry struct {
	key       string
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
	elem      *list.Element
}

func NewMemoryStore(logger types.Logger, config *types.FallbackStoreConfig) *MemoryStore {
	maxEntries := DefaultMaxEntries
	if config != nil && config.MaxEntries > 0 {
		maxEntries = config.MaxEntries
	}

	return &MemoryStore{
		logger:     logger,
		maxEntries: maxEntries,
		data:       make(map[string]*memoryEntry),
		order:      list.New(),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, types.ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		m.removeEntry(entry)
		return nil, types.ErrCacheMiss
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		return types.NewErrorf("ttl must be positive, got %s", ttl)
	}

	now := time.Now()
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.data[key]; exists {
		existing.value = stored
		existing.storedAt = now
		existing.expiresAt = now.Add(ttl)
		// an overwrite counts as a fresh insertion for eviction order
		m.order.MoveToBack(existing.elem)
		return nil
	}

	if m.order.Len() >= m.maxEntries {
		m.evictOldest()
	}

	entry := &memoryEntry{
		key:       key,
		value:     stored,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	entry.elem = m.order.PushBack(entry)
	m.data[key] = entry

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.data[key]; exists {
		m.removeEntry(entry)
	}
	return nil
}

func (m *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, types.ErrPatternEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*memoryEntry
	for key, entry := range m.data {
		if MatchPattern(pattern, key) {
			matched = append(matched, entry)
		}
	}

	for _, entry := range matched {
		m.removeEntry(entry)
	}

	return len(matched), nil
}

func (m *MemoryStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]*memoryEntry)
	m.order.Init()
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemoryStore) MaxEntries() int {
	return m.maxEntries
}

// Sweep removes expired entries eagerly. Called by the maintenance
// scheduler; correctness does not depend on it since Get drops expired
// entries lazily.
func (m *MemoryStore) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*memoryEntry
	for _, entry := range m.data {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
		}
	}

	for _, entry := range expired {
		m.removeEntry(entry)
	}

	if len(expired) > 0 && m.logger != nil {
		m.logger.Debug("Fallback store sweep completed", zap.Int("expired_entries", len(expired)))
	}

	return len(expired)
}

func (m *MemoryStore) evictOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}

	entry := front.Value.(*memoryEntry)
	m.removeEntry(entry)

	if m.logger != nil {
		m.logger.Debug("Fallback store evicted oldest entry", zap.String("key", entry.key))
	}
}

func (m *MemoryStore) removeEntry(entry *memoryEntry) {
	delete(m.data, entry.key)
	m.order.Remove(entry.elem)
}

var _ types.CacheStore = (*MemoryStore)(nil)
