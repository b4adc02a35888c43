// Package depend evaluates upstream dependencies before a stage runs.
//
// Rules are declared per downstream stage at configuration time and never
// change during a run. The resolver turns observed upstream coverage plus
// the rule set into a single proceed/degrade/fail decision.
package depend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hoopline/gatekeeper/types"
	"github.com/hoopline/gatekeeper/warehouse"
)

// Registry holds the dependency rules per downstream stage, plus the
// output-table binding used to probe an upstream that has no run record.
type Registry struct {
	mu      sync.RWMutex
	rules   map[string]map[string]types.DependencyRule
	sources map[string]warehouse.Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:   make(map[string]map[string]types.DependencyRule),
		sources: make(map[string]warehouse.Source),
	}
}

// Register declares the dependency rules of one downstream stage. Each
// rule is validated; re-registering an upstream for the same stage is an
// error since rules are meant to be immutable after construction.
func (r *Registry) Register(stage string, rules ...types.DependencyRule) error {
	if stage == "" {
		return fmt.Errorf("depend: rules require a downstream stage name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("depend: rule for stage %s: %w", stage, err)
		}
		if r.rules[stage] == nil {
			r.rules[stage] = make(map[string]types.DependencyRule)
		}
		if _, dup := r.rules[stage][rule.UpstreamStage]; dup {
			return fmt.Errorf("depend: duplicate rule %s -> %s", stage, rule.UpstreamStage)
		}
		r.rules[stage][rule.UpstreamStage] = rule
	}
	return nil
}

// BindSource associates an upstream stage with its output table, enabling
// the existence-probe fallback when the stage has no run record.
func (r *Registry) BindSource(stage string, src warehouse.Source) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("depend: source for stage %s: %w", stage, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[stage] = src
	return nil
}

// RulesFor returns the rules registered for a downstream stage, sorted by
// upstream name for deterministic evaluation order.
func (r *Registry) RulesFor(stage string) []types.DependencyRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byUpstream := r.rules[stage]
	out := make([]types.DependencyRule, 0, len(byUpstream))
	for _, rule := range byUpstream {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpstreamStage < out[j].UpstreamStage
	})
	return out
}

// RuleFor returns the rule a downstream stage holds against one upstream.
// An unconfigured upstream defaults to a hard dependency at 100% coverage:
// asking about an upstream nobody declared is treated as fail-safe, not
// fail-open.
func (r *Registry) RuleFor(stage, upstream string) types.DependencyRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[stage][upstream]; ok {
		return rule
	}
	return types.DependencyRule{
		UpstreamStage: upstream,
		IsHard:        true,
		MinCoverage:   1.0,
	}
}

// SourceFor returns the output-table binding of an upstream stage.
func (r *Registry) SourceFor(stage string) (warehouse.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[stage]
	return src, ok
}
