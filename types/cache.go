package types

import (
	"context"
	"time"
)

// CacheEngine is the dual-tier response cache. All operations are total:
// internal store failures degrade to a miss on reads and a no-op on writes,
// they are never surfaced to callers.
type CacheEngine interface {
	LifecycleManager
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	DeletePattern(ctx context.Context, pattern string)
	Flush(ctx context.Context)
	Stats() CacheStatSnapshot
	ResetStats()
}

// CacheStore is a single cache tier. Get returns ErrCacheMiss when the key
// is absent; any other error means the tier itself failed.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
}

type InvalidationEngine interface {
	OnMutation(ctx context.Context, category, resourceID string, scope Scope)
}

type CacheStatSnapshot struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Errors        uint64 `json:"errors"`
	Invalidations uint64 `json:"invalidations"`
}

// CachedResponse is the envelope stored as an entry value in both tiers.
type CachedResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Body     []byte            `json:"body"`
	ETag     string            `json:"etag"`
	StoredAt time.Time         `json:"stored_at"`
	Category string            `json:"category"`
}

// Scope is the tenant discriminator folded into every cache key. The zero
// value is ambiguous and rejected by the key builder; resources without a
// tenant dimension must declare ScopeGlobal explicitly.
type Scope struct {
	Kind ScopeKind
	ID   string
}

type ScopeKind uint8

const (
	ScopeNone ScopeKind = iota
	ScopeGlobal
	ScopeTenant
	ScopeUser
)

func GlobalScope() Scope          { return Scope{Kind: ScopeGlobal} }
func TenantScope(id string) Scope { return Scope{Kind: ScopeTenant, ID: id} }
func UserScope(id string) Scope   { return Scope{Kind: ScopeUser, ID: id} }

func (s Scope) IsZero() bool {
	return s.Kind == ScopeNone || (s.Kind != ScopeGlobal && s.ID == "")
}

// Token renders the scope segment of a cache key.
func (s Scope) Token() string {
	switch s.Kind {
	case ScopeGlobal:
		return "global"
	case ScopeTenant:
		return "t/" + s.ID
	case ScopeUser:
		return "u/" + s.ID
	default:
		return ""
	}
}

type CachePolicy struct {
	Category string
	TTL      time.Duration
	Tags     []string
}

type InvalidationRule struct {
	Category string
	Patterns []string
}
