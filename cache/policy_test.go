package cache

import (
	"testing"
	"time"

	"github.com/qorebase/tiercache/types"
)

func TestPolicyTableResolve(t *testing.T) {
	table := NewPolicyTable(time.Minute, []*types.PolicyConfig{
		{Category: "bookings", TTL: types.Duration(30 * time.Second), Tags: []string{"bookings"}},
		{Category: "analytics", TTL: types.Duration(5 * time.Minute)},
	})

	policy := table.Resolve("bookings")
	if policy.TTL != 30*time.Second {
		t.Fatalf("bookings TTL = %s, want 30s", policy.TTL)
	}
	if len(policy.Tags) != 1 || policy.Tags[0] != "bookings" {
		t.Fatalf("unexpected tags %v", policy.Tags)
	}

	policy = table.Resolve("analytics")
	if policy.TTL != 5*time.Minute {
		t.Fatalf("analytics TTL = %s, want 5m", policy.TTL)
	}
}

func TestPolicyTableUnlistedCategory(t *testing.T) {
	table := NewPolicyTable(time.Minute, nil)

	policy := table.Resolve("unknown")
	if policy.TTL != time.Minute {
		t.Fatalf("unlisted category TTL = %s, want default 1m", policy.TTL)
	}
	if policy.Category != "default" {
		t.Fatalf("unlisted category resolved to %q", policy.Category)
	}
}

func TestPolicyTableDefaultTTLClamp(t *testing.T) {
	table := NewPolicyTable(0, nil)
	if table.Default().TTL <= 0 {
		t.Fatalf("non-positive default TTL not clamped: %s", table.Default().TTL)
	}
}

func TestPolicyTableSkipsInvalidEntries(t *testing.T) {
	table := NewPolicyTable(time.Minute, []*types.PolicyConfig{
		nil,
		{Category: ""},
		{Category: "valid", TTL: types.Duration(time.Second)},
	})

	categories := table.Categories()
	if len(categories) != 1 || categories[0] != "valid" {
		t.Fatalf("unexpected categories %v", categories)
	}
}
