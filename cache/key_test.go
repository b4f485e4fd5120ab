package cache

import (
	"strings"
	"testing"

	"github.com/qorebase/tiercache/types"
)

func TestKeyBuilderDeterministic(t *testing.T) {
	kb := NewKeyBuilder("app")
	query := map[string][]string{"page": {"2"}, "limit": {"50"}}

	first, err := kb.Build("GET", "/bookings", query, types.TenantScope("acme"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	second, err := kb.Build("get", "/bookings", query, types.TenantScope("acme"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if first != second {
		t.Fatalf("same request produced different keys: %q vs %q", first, second)
	}

	expected := "app:GET:/bookings:t/acme:limit=50&page=2"
	if first != expected {
		t.Fatalf("unexpected key %q, want %q", first, expected)
	}
}

func TestKeyBuilderQueryOrderIrrelevant(t *testing.T) {
	kb := NewKeyBuilder("app")

	a, _ := kb.Build("GET", "/items", map[string][]string{"a": {"1"}, "b": {"2"}}, types.GlobalScope())
	b, _ := kb.Build("GET", "/items", map[string][]string{"b": {"2"}, "a": {"1"}}, types.GlobalScope())

	if a != b {
		t.Fatalf("query order changed the key: %q vs %q", a, b)
	}
}

func TestKeyBuilderScopeIsolation(t *testing.T) {
	kb := NewKeyBuilder("app")

	tenantA, _ := kb.Build("GET", "/bookings", nil, types.TenantScope("acme"))
	tenantB, _ := kb.Build("GET", "/bookings", nil, types.TenantScope("globex"))
	global, _ := kb.Build("GET", "/bookings", nil, types.GlobalScope())
	user, _ := kb.Build("GET", "/bookings", nil, types.UserScope("acme"))

	keys := map[string]bool{tenantA: true, tenantB: true, global: true, user: true}
	if len(keys) != 4 {
		t.Fatalf("expected 4 distinct keys, got %d: %v", len(keys), keys)
	}
}

func TestKeyBuilderRejectsZeroScope(t *testing.T) {
	kb := NewKeyBuilder("app")

	cases := []types.Scope{
		{},
		{Kind: types.ScopeTenant},
		{Kind: types.ScopeUser},
	}

	for _, scope := range cases {
		if _, err := kb.Build("GET", "/bookings", nil, scope); !types.IsError(err, types.ErrScopeMissing) {
			t.Fatalf("scope %+v: expected ErrScopeMissing, got %v", scope, err)
		}
	}
}

func TestKeyBuilderRejectsEmptyComponents(t *testing.T) {
	kb := NewKeyBuilder("app")

	if _, err := kb.Build("", "/bookings", nil, types.GlobalScope()); !types.IsError(err, types.ErrCacheKeyEmpty) {
		t.Fatalf("empty verb: expected ErrCacheKeyEmpty, got %v", err)
	}
	if _, err := kb.Build("GET", "", nil, types.GlobalScope()); !types.IsError(err, types.ErrCacheKeyEmpty) {
		t.Fatalf("empty path: expected ErrCacheKeyEmpty, got %v", err)
	}
}

func TestKeyBuilderEmptyQueryFingerprint(t *testing.T) {
	kb := NewKeyBuilder("app")

	key, err := kb.Build("GET", "/bookings", nil, types.GlobalScope())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.HasSuffix(key, ":"+emptyFingerprint) {
		t.Fatalf("expected empty fingerprint suffix, got %q", key)
	}
}

func TestKeyBuilderLongQueryHashed(t *testing.T) {
	kb := NewKeyBuilder("app")
	query := map[string][]string{
		"filter": {strings.Repeat("x", fingerprintThreshold+1)},
	}

	key, err := kb.Build("GET", "/bookings", query, types.GlobalScope())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	parts := strings.Split(key, ":")
	fingerprint := parts[len(parts)-1]
	if len(fingerprint) != 32 {
		t.Fatalf("expected 32 hex chars, got %d in %q", len(fingerprint), fingerprint)
	}
	if strings.Contains(fingerprint, "=") {
		t.Fatalf("long query leaked into key verbatim: %q", key)
	}

	again, _ := kb.Build("GET", "/bookings", query, types.GlobalScope())
	if key != again {
		t.Fatalf("hashed fingerprint not deterministic: %q vs %q", key, again)
	}
}

func TestKeyBuilderDefaultNamespace(t *testing.T) {
	kb := NewKeyBuilder("")
	if kb.Namespace() != defaultNamespace {
		t.Fatalf("expected default namespace %q, got %q", defaultNamespace, kb.Namespace())
	}
}

func TestEntityPrefix(t *testing.T) {
	kb := NewKeyBuilder("app")

	prefix := kb.EntityPrefix("get", "/bookings/42", types.TenantScope("acme"))
	if prefix != "app:GET:/bookings/42:t/acme:" {
		t.Fatalf("unexpected prefix %q", prefix)
	}

	key, _ := kb.Build("GET", "/bookings/42", map[string][]string{"v": {"full"}}, types.TenantScope("acme"))
	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("key %q does not share prefix %q", key, prefix)
	}
}

func TestCanonicalQueryRepeatedValues(t *testing.T) {
	canonical := CanonicalQuery(map[string][]string{"tag": {"b", "a"}})
	if canonical != "tag=b,a" {
		t.Fatalf("repeated values must keep arrival order, got %q", canonical)
	}
}

func TestCanonicalQueryEscaping(t *testing.T) {
	canonical := CanonicalQuery(map[string][]string{"q": {"a b&c"}})
	if strings.ContainsAny(canonical, " &") && !strings.HasPrefix(canonical, "q=") {
		t.Fatalf("unescaped reserved characters in %q", canonical)
	}
	if canonical != "q=a+b%26c" {
		t.Fatalf("unexpected canonical form %q", canonical)
	}
}
