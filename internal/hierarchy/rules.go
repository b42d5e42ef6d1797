// Package hierarchy holds the type-level nesting rules for locations.
//
// A RuleSet is an immutable value. Callers load one (from storage or a preset)
// and pass it into location operations; replacing rules means building a new
// RuleSet, so a set in use by one request never changes underneath it.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erazemk/shramba/internal/model"
)

type pair struct {
	parent model.LocationType
	child  model.LocationType
}

// RuleSet answers whether one location type may be nested inside another.
type RuleSet struct {
	rules map[pair]bool
}

// NewRuleSet builds a rule set. Later rules for the same pair win.
// It does not validate; use Validate before persisting.
func NewRuleSet(rules []model.HierarchyRule) *RuleSet {
	s := &RuleSet{rules: make(map[pair]bool, len(rules))}
	for _, r := range rules {
		s.rules[pair{r.ParentType, r.ChildType}] = r.Allowed
	}
	return s
}

// IsAllowed reports whether child may be placed inside parent. Pairs without
// a rule are disallowed, and so is everything on a nil set.
func (s *RuleSet) IsAllowed(parent, child model.LocationType) bool {
	if s == nil {
		return false
	}
	return s.rules[pair{parent, child}]
}

// Rules returns the set's rules in a stable order.
func (s *RuleSet) Rules() []model.HierarchyRule {
	if s == nil {
		return nil
	}
	out := make([]model.HierarchyRule, 0, len(s.rules))
	for p, allowed := range s.rules {
		out = append(out, model.HierarchyRule{ParentType: p.parent, ChildType: p.child, Allowed: allowed})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParentType != out[j].ParentType {
			return typeOrder(out[i].ParentType) < typeOrder(out[j].ParentType)
		}
		return typeOrder(out[i].ChildType) < typeOrder(out[j].ChildType)
	})
	return out
}

// AllowedChildren lists the types that may be placed inside parent.
func (s *RuleSet) AllowedChildren(parent model.LocationType) []model.LocationType {
	var out []model.LocationType
	for _, child := range model.LocationTypes {
		if s.IsAllowed(parent, child) {
			out = append(out, child)
		}
	}
	return out
}

// With returns a copy of the set with one rule set to allowed.
func (s *RuleSet) With(parent, child model.LocationType, allowed bool) *RuleSet {
	rules := s.Rules()
	rules = append(rules, model.HierarchyRule{ParentType: parent, ChildType: child, Allowed: allowed})
	return NewRuleSet(rules)
}

// Validate checks that every rule names known types and that the allowed
// rules form an acyclic type graph.
func Validate(rules []model.HierarchyRule) error {
	var fields []model.FieldError
	for i, r := range rules {
		if !r.ParentType.Valid() {
			fields = append(fields, model.FieldError{
				Field:   fmt.Sprintf("rules[%d].parentType", i),
				Message: fmt.Sprintf("unknown location type %q", r.ParentType),
			})
		}
		if !r.ChildType.Valid() {
			fields = append(fields, model.FieldError{
				Field:   fmt.Sprintf("rules[%d].childType", i),
				Message: fmt.Sprintf("unknown location type %q", r.ChildType),
			})
		}
	}
	if err := model.NewValidationError(fields); err != nil {
		return err
	}
	return ValidateAcyclic(rules)
}

// CycleError reports a cycle in the type graph. Node is the type that was
// reached again while still on the DFS stack; Path is the cycle itself.
type CycleError struct {
	Node model.LocationType
	Path []model.LocationType
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = string(t)
	}
	return fmt.Sprintf("%s: hierarchy rules loop through %q (%s)", model.ErrCycleDetected, e.Node, strings.Join(names, " -> "))
}

// Is makes errors.Is(err, model.ErrCycleDetected) hold.
func (e *CycleError) Is(target error) bool {
	return target == model.ErrCycleDetected
}

// ValidateAcyclic runs a depth-first search over the allowed rules and returns
// a *CycleError for the first back edge it finds.
func ValidateAcyclic(rules []model.HierarchyRule) error {
	// Resolve duplicates the same way NewRuleSet does.
	effective := NewRuleSet(rules)
	adj := make(map[model.LocationType][]model.LocationType)
	for p, allowed := range effective.rules {
		if allowed {
			adj[p.parent] = append(adj[p.parent], p.child)
		}
	}

	nodes := make([]model.LocationType, 0, len(adj))
	for n, children := range adj {
		nodes = append(nodes, n)
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	visited := make(map[model.LocationType]bool, len(adj))
	onStack := make(map[model.LocationType]bool, len(adj))
	var stack []model.LocationType

	var visit func(n model.LocationType) error
	visit = func(n model.LocationType) error {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, next := range adj[n] {
			if onStack[next] {
				return &CycleError{Node: next, Path: cyclePath(stack, next)}
			}
			if !visited[next] {
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		onStack[n] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, n := range nodes {
		if !visited[n] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath cuts the DFS stack down to the loop that closes at node.
func cyclePath(stack []model.LocationType, node model.LocationType) []model.LocationType {
	for i, n := range stack {
		if n == node {
			path := append([]model.LocationType{}, stack[i:]...)
			return append(path, node)
		}
	}
	return []model.LocationType{node, node}
}

func typeOrder(t model.LocationType) int {
	for i, known := range model.LocationTypes {
		if t == known {
			return i
		}
	}
	return len(model.LocationTypes)
}
