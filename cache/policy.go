package cache

import (
	"sort"
	"time"

	"github.com/qorebase/tiercache/types"
)

// PolicyTable is the static category → {TTL, invalidation tags} lookup.
// It is built once at startup from configuration and read-only afterwards;
// updating it means a restart, never a runtime API.
type PolicyTable struct {
	policies map[string]types.CachePolicy
	fallback types.CachePolicy
}

func NewPolicyTable(defaultTTL time.Duration, entries []*types.PolicyConfig) *PolicyTable {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	table := &PolicyTable{
		policies: make(map[string]types.CachePolicy, len(entries)),
		fallback: types.CachePolicy{
			Category: "default",
			TTL:      defaultTTL,
		},
	}

	for _, entry := range entries {
		if entry == nil || entry.Category == "" {
			continue
		}
		table.policies[entry.Category] = types.CachePolicy{
			Category: entry.Category,
			TTL:      entry.TTL.Std(),
			Tags:     append([]string(nil), entry.Tags...),
		}
	}

	return table
}

// Resolve returns the policy for a category, falling back to the default
// policy for anything unlisted.
func (pt *PolicyTable) Resolve(category string) types.CachePolicy {
	if policy, ok := pt.policies[category]; ok {
		return policy
	}
	return pt.fallback
}

func (pt *PolicyTable) Default() types.CachePolicy {
	return pt.fallback
}

func (pt *PolicyTable) Categories() []string {
	categories := make([]string, 0, len(pt.policies))
	for category := range pt.policies {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
