package cache

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
)

// Invalidator expands "resource mutated" events into concrete key patterns
// and purges them from both cache tiers. Rules are declarative pattern
// templates per resource category; fan-out to parent or aggregate entries
// (a booking mutation purging booking lists and analytics) is declared in
// the rule's pattern set rather than inferred.
//
// Templates support three placeholders: {ns} for the key namespace, {id}
// for the mutated resource id and {scope} for the scope token.
type Invalidator struct {
	engine    *Engine
	logger    types.Logger
	namespace string
	rules     map[string][]string
}

func NewInvalidator(engine *Engine, logger types.Logger, namespace string, configs []*types.InvalidationRuleConfig) (*Invalidator, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	rules := make(map[string][]string, len(configs))
	for _, config := range configs {
		if config == nil {
			continue
		}
		if config.Category == "" {
			return nil, types.Errorf(types.ErrPatternEmpty, "invalidation rule without category")
		}
		if len(config.Patterns) == 0 {
			return nil, types.Errorf(types.ErrPatternEmpty, "invalidation rule for category %q has no patterns", config.Category)
		}
		rules[config.Category] = append(rules[config.Category], config.Patterns...)
	}

	return &Invalidator{
		engine:    engine,
		logger:    logger,
		namespace: namespace,
		rules:     rules,
	}, nil
}

// OnMutation runs synchronously on the mutating request's goroutine, after
// the mutation committed and before the response goes out. The next read
// from the same caller therefore cannot observe the pre-mutation entry.
func (inv *Invalidator) OnMutation(ctx context.Context, category, resourceID string, scope types.Scope) {
	if category == "" || scope.IsZero() {
		return
	}

	patterns := inv.patternsFor(category, resourceID, scope)

	for _, pattern := range patterns {
		inv.engine.DeletePattern(ctx, pattern)
	}

	inv.engine.RecordInvalidation()

	inv.logger.Debug("Invalidation fan-out completed",
		zap.String("category", category),
		zap.String("resource_id", resourceID),
		zap.String("scope", scope.Token()),
		zap.Int("patterns", len(patterns)))
}

// Categories lists the categories with an explicit rule, for diagnostics.
func (inv *Invalidator) Categories() []string {
	categories := make([]string, 0, len(inv.rules))
	for category := range inv.rules {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

func (inv *Invalidator) patternsFor(category, resourceID string, scope types.Scope) []string {
	templates, exists := inv.rules[category]
	if !exists {
		// no declared rule: purge the category's entity and collection
		// entries for this scope, assuming the conventional /category path
		templates = []string{
			"{ns}:GET:/" + category + "/{id}:{scope}:*",
			"{ns}:GET:/" + category + ":{scope}:*",
		}
	}

	patterns := make([]string, 0, len(templates))
	for _, template := range templates {
		patterns = append(patterns, inv.expand(template, resourceID, scope))
	}
	return patterns
}

func (inv *Invalidator) expand(template, resourceID string, scope types.Scope) string {
	expanded := strings.ReplaceAll(template, "{ns}", inv.namespace)
	expanded = strings.ReplaceAll(expanded, "{id}", resourceID)
	expanded = strings.ReplaceAll(expanded, "{scope}", scope.Token())
	return expanded
}

var _ types.InvalidationEngine = (*Invalidator)(nil)
