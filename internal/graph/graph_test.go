package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/shramba/internal/model"
)

func price(p float64) *float64 { return &p }

func edge(t model.RelationType, from, to string) model.Relation {
	return model.Relation{Type: t, FromItemID: from, ToItemID: to}
}

func items(list ...model.Item) map[string]model.Item {
	m := make(map[string]model.Item, len(list))
	for _, it := range list {
		m[it.ID] = it
	}
	return m
}

func TestAggregateSingleVariant(t *testing.T) {
	g := New([]model.Relation{
		edge(model.RelOwnsVariant, "m", "blue"),
		edge(model.RelOwnsInstance, "m", "l1"),
		edge(model.RelVariantOfInstance, "blue", "l1"),
	})
	all := items(
		model.Item{ID: "m", Name: "Wool A", Role: model.RoleMaster},
		model.Item{ID: "blue", Name: "Blue", Role: model.RoleVariant},
		model.Item{ID: "l1", Role: model.RoleInstance, TotalQuantity: 5, AvailableQuantity: 5, Price: price(10)},
	)

	agg := Aggregate(g, "m", all)
	assert.Equal(t, 5.0, agg.TotalQuantity)
	assert.Equal(t, 5.0, agg.TotalAvailable)
	assert.Equal(t, 50.0, agg.TotalValue)
	assert.Equal(t, 1, agg.DistinctVariantCount)
	assert.Equal(t, 1, agg.InstanceCount)
	assert.Equal(t, []string{"Blue"}, agg.DistinctColors)
	assert.Equal(t, "Wool A", agg.MasterName)
}

func TestAggregateNoVariants(t *testing.T) {
	g := New([]model.Relation{
		edge(model.RelOwnsInstance, "m", "a"),
		edge(model.RelOwnsInstance, "m", "b"),
	})
	all := items(
		model.Item{ID: "m", Role: model.RoleMaster},
		model.Item{ID: "a", Role: model.RoleInstance, TotalQuantity: 4, AvailableQuantity: 3, Price: price(2)},
		model.Item{ID: "b", Role: model.RoleInstance, TotalQuantity: 6, AvailableQuantity: 6},
	)

	agg := Aggregate(g, "m", all)
	assert.Equal(t, 10.0, agg.TotalQuantity)
	assert.Equal(t, 9.0, agg.TotalAvailable)
	assert.Equal(t, 6.0, agg.TotalValue, "missing price counts as zero")
	assert.Equal(t, 0, agg.DistinctVariantCount)
	assert.Empty(t, agg.DistinctColors)
}

func TestAggregateMixedShape(t *testing.T) {
	g := New([]model.Relation{
		edge(model.RelOwnsVariant, "m", "red"),
		edge(model.RelOwnsVariant, "m", "green"),
		edge(model.RelOwnsVariant, "m", "unused"),
		edge(model.RelOwnsInstance, "m", "r1"),
		edge(model.RelVariantOfInstance, "red", "r1"),
		edge(model.RelOwnsInstance, "m", "r2"),
		edge(model.RelVariantOfInstance, "red", "r2"),
		edge(model.RelOwnsInstance, "m", "g1"),
		edge(model.RelVariantOfInstance, "green", "g1"),
		edge(model.RelOwnsInstance, "m", "plain"),
		// Another master's graph must not leak in.
		edge(model.RelOwnsInstance, "other", "x"),
	})
	all := items(
		model.Item{ID: "m", Role: model.RoleMaster},
		model.Item{ID: "red", Name: "Red", Role: model.RoleVariant},
		model.Item{ID: "green", Name: "Green", Role: model.RoleVariant},
		model.Item{ID: "unused", Name: "Unused", Role: model.RoleVariant},
		model.Item{ID: "r1", Role: model.RoleInstance, TotalQuantity: 1, AvailableQuantity: 1, Price: price(3)},
		model.Item{ID: "r2", Role: model.RoleInstance, TotalQuantity: 2, AvailableQuantity: 1, Price: price(3)},
		model.Item{ID: "g1", Role: model.RoleInstance, TotalQuantity: 3, AvailableQuantity: 3, Price: price(1)},
		model.Item{ID: "plain", Role: model.RoleInstance, TotalQuantity: 4, AvailableQuantity: 4},
		model.Item{ID: "x", Role: model.RoleInstance, TotalQuantity: 100, AvailableQuantity: 100},
	)

	agg := Aggregate(g, "m", all)
	assert.Equal(t, 10.0, agg.TotalQuantity)
	assert.Equal(t, 9.0, agg.TotalAvailable)
	assert.Equal(t, 9.0, agg.TotalValue)
	assert.Equal(t, 4, agg.InstanceCount, "instances reached twice count once")
	assert.Equal(t, 3, agg.DistinctVariantCount)
	assert.Equal(t, []string{"Green", "Red"}, agg.DistinctColors)
}

func TestReachableIDs(t *testing.T) {
	g := New([]model.Relation{
		edge(model.RelOwnsVariant, "m", "v"),
		edge(model.RelOwnsInstance, "m", "i"),
		edge(model.RelVariantOfInstance, "v", "i"),
	})
	reach := g.Reachable("m")
	assert.Equal(t, []string{"m", "v", "i"}, reach.IDs("m"))
	assert.Equal(t, []string{"m"}, g.Sources("v", model.RelOwnsVariant))
}

func TestAggregateAllOrdersByName(t *testing.T) {
	g := New([]model.Relation{edge(model.RelOwnsInstance, "b", "i")})
	all := items(
		model.Item{ID: "a", Name: "Zephyr", Role: model.RoleMaster},
		model.Item{ID: "b", Name: "Alpaca", Role: model.RoleMaster},
		model.Item{ID: "i", Role: model.RoleInstance, TotalQuantity: 2, AvailableQuantity: 2},
	)

	aggs := AggregateAll(g, all)
	if assert.Len(t, aggs, 2) {
		assert.Equal(t, "Alpaca", aggs[0].MasterName)
		assert.Equal(t, 2.0, aggs[0].TotalQuantity)
		assert.Equal(t, "Zephyr", aggs[1].MasterName)
		assert.Equal(t, 0.0, aggs[1].TotalQuantity)
	}
}
