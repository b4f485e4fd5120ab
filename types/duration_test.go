package types

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	var target struct {
		TTL Duration `yaml:"ttl"`
	}

	if err := yaml.Unmarshal([]byte("ttl: 90s"), &target); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if target.TTL.Std() != 90*time.Second {
		t.Fatalf("ttl = %s, want 90s", target.TTL)
	}

	if err := yaml.Unmarshal([]byte("ttl: 1h30m"), &target); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if target.TTL.Std() != 90*time.Minute {
		t.Fatalf("ttl = %s, want 1h30m", target.TTL)
	}

	if err := yaml.Unmarshal([]byte("ttl: not-a-duration"), &target); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	var target struct {
		TTL Duration `json:"ttl"`
	}

	if err := target.TTL.UnmarshalJSON([]byte(`"45s"`)); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if target.TTL.Std() != 45*time.Second {
		t.Fatalf("ttl = %s, want 45s", target.TTL)
	}
}

func TestScopeToken(t *testing.T) {
	cases := []struct {
		scope Scope
		want  string
	}{
		{GlobalScope(), "global"},
		{TenantScope("acme"), "t/acme"},
		{UserScope("alice"), "u/alice"},
		{Scope{}, ""},
	}

	for _, tc := range cases {
		if got := tc.scope.Token(); got != tc.want {
			t.Errorf("Token(%+v) = %q, want %q", tc.scope, got, tc.want)
		}
	}
}

func TestScopeIsZero(t *testing.T) {
	if GlobalScope().IsZero() {
		t.Error("global scope reported zero")
	}
	if !(Scope{}).IsZero() {
		t.Error("empty scope not reported zero")
	}
	if !(Scope{Kind: ScopeTenant}).IsZero() {
		t.Error("tenant scope without an id not reported zero")
	}
	if TenantScope("acme").IsZero() {
		t.Error("tenant scope with an id reported zero")
	}
}
