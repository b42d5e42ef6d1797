// Package graph holds an owner's item relations in memory and computes
// rollups over them. Loading is the caller's job; everything here is pure.
package graph

import (
	"sort"

	"github.com/erazemk/shramba/internal/model"
)

// Graph is an adjacency list of typed item relations.
type Graph struct {
	out map[string][]model.Relation
	in  map[string][]model.Relation
}

// New indexes relations by source and target.
func New(relations []model.Relation) *Graph {
	g := &Graph{
		out: make(map[string][]model.Relation),
		in:  make(map[string][]model.Relation),
	}
	for _, r := range relations {
		g.out[r.FromItemID] = append(g.out[r.FromItemID], r)
		g.in[r.ToItemID] = append(g.in[r.ToItemID], r)
	}
	return g
}

// Targets returns the ids reached from id over edges of type t.
func (g *Graph) Targets(id string, t model.RelationType) []string {
	var ids []string
	for _, r := range g.out[id] {
		if r.Type == t {
			ids = append(ids, r.ToItemID)
		}
	}
	return ids
}

// Sources returns the ids with an edge of type t into id.
func (g *Graph) Sources(id string, t model.RelationType) []string {
	var ids []string
	for _, r := range g.in[id] {
		if r.Type == t {
			ids = append(ids, r.FromItemID)
		}
	}
	return ids
}

// Reach is what one traversal from a master found.
type Reach struct {
	Variants  []string
	Instances []string
	// InstanceVariants maps an instance to the variants it was reached through.
	InstanceVariants map[string][]string
}

// Reachable walks from masterID: its variants over OWNS_VARIANT, instances over
// OWNS_INSTANCE, and instances of its variants over VARIANT_OF_INSTANCE.
// Every id is visited once.
func (g *Graph) Reachable(masterID string) Reach {
	reach := Reach{InstanceVariants: make(map[string][]string)}
	seenVariant := make(map[string]bool)
	seenInstance := make(map[string]bool)

	addInstance := func(id string) {
		if !seenInstance[id] {
			seenInstance[id] = true
			reach.Instances = append(reach.Instances, id)
		}
	}

	for _, id := range g.Targets(masterID, model.RelOwnsInstance) {
		addInstance(id)
	}
	for _, v := range g.Targets(masterID, model.RelOwnsVariant) {
		if seenVariant[v] || v == masterID {
			continue
		}
		seenVariant[v] = true
		reach.Variants = append(reach.Variants, v)
		for _, id := range g.Targets(v, model.RelVariantOfInstance) {
			addInstance(id)
			reach.InstanceVariants[id] = append(reach.InstanceVariants[id], v)
		}
	}
	return reach
}

// IDs returns every item id the traversal touched, including the master.
func (r Reach) IDs(masterID string) []string {
	ids := make([]string, 0, 1+len(r.Variants)+len(r.Instances))
	ids = append(ids, masterID)
	ids = append(ids, r.Variants...)
	ids = append(ids, r.Instances...)
	return ids
}

// Aggregate sums quantity and value over every instance reachable from
// masterID. items must hold the reached items; ids missing from it are
// skipped. Colors are the names of variants with at least one instance.
func Aggregate(g *Graph, masterID string, items map[string]model.Item) model.Aggregate {
	agg := model.Aggregate{MasterID: masterID, DistinctColors: []string{}}
	if m, ok := items[masterID]; ok {
		agg.MasterName = m.Name
	}

	reach := g.Reachable(masterID)
	for _, v := range reach.Variants {
		if _, ok := items[v]; ok {
			agg.DistinctVariantCount++
		}
	}

	colors := make(map[string]bool)
	for _, id := range reach.Instances {
		inst, ok := items[id]
		if !ok {
			continue
		}
		agg.InstanceCount++
		agg.TotalQuantity += inst.TotalQuantity
		agg.TotalAvailable += inst.AvailableQuantity
		agg.TotalValue += inst.Value()

		for _, v := range reach.InstanceVariants[id] {
			if variant, ok := items[v]; ok {
				colors[variant.Name] = true
			}
		}
	}

	for c := range colors {
		agg.DistinctColors = append(agg.DistinctColors, c)
	}
	sort.Strings(agg.DistinctColors)
	return agg
}

// AggregateAll computes Aggregate for every master in items.
func AggregateAll(g *Graph, items map[string]model.Item) []model.Aggregate {
	var masters []model.Item
	for _, it := range items {
		if it.Role == model.RoleMaster {
			masters = append(masters, it)
		}
	}
	sort.Slice(masters, func(i, j int) bool {
		if masters[i].Name != masters[j].Name {
			return masters[i].Name < masters[j].Name
		}
		return masters[i].ID < masters[j].ID
	})

	out := make([]model.Aggregate, 0, len(masters))
	for _, m := range masters {
		out = append(out, Aggregate(g, m.ID, items))
	}
	return out
}
