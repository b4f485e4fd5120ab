package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/qorebase/tiercache/types"
)

// Canonical query strings at or below this size are embedded into the key
// as-is, which keeps short keys readable in the store. Longer ones are
// replaced by a fixed-length content hash so key length stays bounded.
const fingerprintThreshold = 64

const emptyFingerprint = "-"

const defaultNamespace = "tiercache"

// KeyBuilder produces deterministic, collision-resistant cache keys of the
// form namespace:VERB:path:scope:fingerprint. Two requests that differ in
// any component, tenant scope included, never share a key.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &KeyBuilder{namespace: namespace}
}

func (kb *KeyBuilder) Namespace() string {
	return kb.namespace
}

// Build computes the cache key for one request. A zero scope is rejected:
// callers must either resolve the tenant discriminator or declare the
// resource global on purpose. Silently defaulting a missing scope is how
// cross-tenant leaks happen.
func (kb *KeyBuilder) Build(verb, resourcePath string, query map[string][]string, scope types.Scope) (string, error) {
	if verb == "" || resourcePath == "" {
		return "", types.ErrCacheKeyEmpty
	}
	if scope.IsZero() {
		return "", types.ErrScopeMissing
	}

	var b strings.Builder
	b.Grow(len(kb.namespace) + len(verb) + len(resourcePath) + len(scope.ID) + fingerprintThreshold + 8)
	b.WriteString(kb.namespace)
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(verb))
	b.WriteByte(':')
	b.WriteString(resourcePath)
	b.WriteByte(':')
	b.WriteString(scope.Token())
	b.WriteByte(':')
	b.WriteString(kb.fingerprint(CanonicalQuery(query)))

	return b.String(), nil
}

// EntityPrefix returns the key prefix shared by every cached variant of one
// concrete resource path within a scope. Used to build purge patterns.
func (kb *KeyBuilder) EntityPrefix(verb, resourcePath string, scope types.Scope) string {
	return kb.namespace + ":" + strings.ToUpper(verb) + ":" + resourcePath + ":" + scope.Token() + ":"
}

func (kb *KeyBuilder) fingerprint(canonical string) string {
	if canonical == "" {
		return emptyFingerprint
	}
	if len(canonical) <= fingerprintThreshold {
		return canonical
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:16])
}

// CanonicalQuery renders query parameters into a stable string: keys sorted
// lexicographically, values escaped, repeated values kept in arrival order.
// Parameter order on the wire never changes the result.
func CanonicalQuery(query map[string][]string) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		for j, v := range query[k] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(url.QueryEscape(v))
		}
	}

	return b.String()
}
