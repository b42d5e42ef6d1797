package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/schema"
)

var validator = schema.NewValidator()

// newInventoryDB returns a migrated database with the default categories.
func newInventoryDB(t *testing.T) *sql.DB {
	t.Helper()
	database := db.NewTestDB(t)
	require.NoError(t, EnsureDefaultCategories(context.Background(), database))
	return database
}

func mustMaster(t *testing.T, database *sql.DB, ownerID, name string) *model.Item {
	t.Helper()
	m, err := CreateMaster(context.Background(), database, validator, ownerID, MasterInput{Name: name, Unit: "g"})
	require.NoError(t, err)
	return m
}

func mustVariant(t *testing.T, database *sql.DB, ownerID string, master *model.Item, name string) *model.Item {
	t.Helper()
	v, err := CreateVariant(context.Background(), database, validator, ownerID, VariantInput{MasterID: master.ID, Name: name})
	require.NoError(t, err)
	return v
}

func mustInstance(t *testing.T, database *sql.DB, ownerID string, in InstanceInput) *model.Item {
	t.Helper()
	inst, err := CreateInstance(context.Background(), database, validator, ownerID, in)
	require.NoError(t, err)
	return inst
}

func TestWoolAScenario(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	wool := mustMaster(t, database, "u1", "Wool A")
	blue := mustVariant(t, database, "u1", wool, "Blue")
	mustInstance(t, database, "u1", InstanceInput{
		MasterID: wool.ID, VariantID: &blue.ID, Name: "Skein", Lot: "L1", Quantity: 5, Price: ptr(10.0),
	})

	agg, err := Aggregate(ctx, database, "u1", wool.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, agg.TotalQuantity)
	assert.Equal(t, 5.0, agg.TotalAvailable)
	assert.Equal(t, 50.0, agg.TotalValue)
	assert.Equal(t, []string{"Blue"}, agg.DistinctColors)
	assert.Equal(t, 1, agg.DistinctVariantCount)
	assert.Equal(t, 1, agg.InstanceCount)
}

func TestAggregateShapes(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	t.Run("no variants or instances", func(t *testing.T) {
		m := mustMaster(t, database, "u1", "Empty")
		agg, err := Aggregate(ctx, database, "u1", m.ID)
		require.NoError(t, err)
		assert.Zero(t, agg.TotalQuantity)
		assert.Zero(t, agg.TotalValue)
		assert.Empty(t, agg.DistinctColors)
	})

	t.Run("direct instances without variant", func(t *testing.T) {
		m := mustMaster(t, database, "u1", "Cotton")
		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "a", Quantity: 3, Price: ptr(2.0)})
		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "b", Quantity: 4})

		agg, err := Aggregate(ctx, database, "u1", m.ID)
		require.NoError(t, err)
		assert.Equal(t, 7.0, agg.TotalQuantity)
		assert.Equal(t, 6.0, agg.TotalValue, "missing price counts as zero")
		assert.Equal(t, 2, agg.InstanceCount)
		assert.Empty(t, agg.DistinctColors)
	})

	t.Run("multiple variants", func(t *testing.T) {
		m := mustMaster(t, database, "u1", "Merino")
		red := mustVariant(t, database, "u1", m, "Red")
		green := mustVariant(t, database, "u1", m, "Green")
		mustVariant(t, database, "u1", m, "Unused")

		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &red.ID, Name: "r1", Quantity: 2, Price: ptr(5.0)})
		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &red.ID, Name: "r2", Quantity: 1, Price: ptr(5.0)})
		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &green.ID, Name: "g1", Quantity: 10, Price: ptr(1.5)})
		mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "loose", Quantity: 1})

		agg, err := Aggregate(ctx, database, "u1", m.ID)
		require.NoError(t, err)
		assert.Equal(t, 14.0, agg.TotalQuantity)
		assert.Equal(t, 30.0, agg.TotalValue)
		assert.Equal(t, 4, agg.InstanceCount)
		assert.Equal(t, 3, agg.DistinctVariantCount)
		assert.Equal(t, []string{"Green", "Red"}, agg.DistinctColors)
	})
}

func TestAggregateUsesAvailableQuantityForValue(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	m := mustMaster(t, database, "u1", "Wool")
	inst := mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "a", Quantity: 10, Price: ptr(2.0)})
	_, err := UpdateQuantities(ctx, database, "u1", inst.ID, QuantityDelta{Available: -4})
	require.NoError(t, err)

	agg, err := Aggregate(ctx, database, "u1", m.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, agg.TotalQuantity)
	assert.Equal(t, 6.0, agg.TotalAvailable)
	assert.Equal(t, 12.0, agg.TotalValue)
}

func TestAggregateNotFound(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")
	v := mustVariant(t, database, "u1", m, "Blue")

	_, err := Aggregate(ctx, database, "u2", m.ID)
	assert.ErrorIs(t, err, model.ErrNotFound, "other owners cannot see the master")
	_, err = Aggregate(ctx, database, "u1", v.ID)
	assert.ErrorIs(t, err, model.ErrNotFound, "a variant is not a master")
}

func TestAggregateAll(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	b := mustMaster(t, database, "u1", "B wool")
	a := mustMaster(t, database, "u1", "A wool")
	mustMaster(t, database, "u2", "Someone else's")
	mustInstance(t, database, "u1", InstanceInput{MasterID: a.ID, Name: "x", Quantity: 2})
	mustInstance(t, database, "u1", InstanceInput{MasterID: b.ID, Name: "y", Quantity: 3})

	all, err := AggregateAll(ctx, database, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A wool", all[0].MasterName)
	assert.Equal(t, 2.0, all[0].TotalQuantity)
	assert.Equal(t, 3.0, all[1].TotalQuantity)
}

func TestCreateMasterReportsEveryField(t *testing.T) {
	database := newInventoryDB(t)

	_, err := CreateMaster(context.Background(), database, validator, "u1", MasterInput{
		Name:         "",
		CategoryData: json.RawMessage(`{"weight": "heavy", "metersPer100g": 0, "colour": "red"}`),
	})

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"name", "weight", "metersPer100g", "colour"}, fields)
}

func TestCreateMasterWrongCategoryRole(t *testing.T) {
	database := newInventoryDB(t)

	_, err := CreateMaster(context.Background(), database, validator, "u1", MasterInput{
		Name: "Wool", CategoryID: model.CategoryYarnBatch,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateBeforeBootstrapIsNotFound(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateMaster(context.Background(), database, validator, "u1", MasterInput{Name: "Wool"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateVariantUnknownMaster(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")

	_, err := CreateVariant(ctx, database, validator, "u1", VariantInput{MasterID: "missing", Name: "Blue"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = CreateVariant(ctx, database, validator, "u2", VariantInput{MasterID: m.ID, Name: "Blue"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	items, err := ListItems(ctx, database, "u1", model.RoleVariant)
	require.NoError(t, err)
	assert.Empty(t, items, "no variant without its edge")
}

func TestCreateVariantColorCode(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")

	v, err := CreateVariant(ctx, database, validator, "u1", VariantInput{MasterID: m.ID, Name: "Blue", ColorCode: "#1e90ff"})
	require.NoError(t, err)
	assert.Equal(t, "#1e90ff", v.ColorCode)
	assert.Equal(t, model.RoleVariant, v.Role)

	_, err = CreateVariant(ctx, database, validator, "u1", VariantInput{MasterID: m.ID, Name: "Odd", ColorCode: "not a color!"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateVariantWithCategoryPayload(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")

	_, err := CreateCategory(ctx, database, NewCategory{
		ID:     "shade",
		Name:   "Shade",
		Role:   model.RoleVariant,
		Schema: []byte(`{"fields":[{"name":"pantone","type":"string","required":true}]}`),
	})
	require.NoError(t, err)

	_, err = CreateVariant(ctx, database, validator, "u1", VariantInput{MasterID: m.ID, Name: "Teal", CategoryID: "shade"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "pantone", verr.Fields[0].Field)

	v, err := CreateVariant(ctx, database, validator, "u1", VariantInput{
		MasterID:     m.ID,
		Name:         "Teal",
		CategoryID:   "shade",
		CategoryData: json.RawMessage(`{"pantone":"3272 C"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "shade", v.CategoryID)
	assert.JSONEq(t, `{"pantone":"3272 C"}`, string(v.CategoryData))
}

func TestDuplicateLotPerOwner(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	for _, owner := range []string{"u1", "u2"} {
		m := mustMaster(t, database, owner, "Wool")
		v := mustVariant(t, database, owner, m, "Blue")
		mustInstance(t, database, owner, InstanceInput{MasterID: m.ID, VariantID: &v.ID, Name: "Skein", Lot: "L1", Quantity: 1})

		_, err := CreateInstance(ctx, database, validator, owner, InstanceInput{
			MasterID: m.ID, VariantID: &v.ID, Name: "Other", Lot: "L1", Quantity: 2,
		})
		assert.ErrorIs(t, err, model.ErrConflict, owner)

		// The same lot under a different variant is a different batch.
		other := mustVariant(t, database, owner, m, "Red")
		mustInstance(t, database, owner, InstanceInput{MasterID: m.ID, VariantID: &other.ID, Name: "Skein", Lot: "L1", Quantity: 1})
	}
}

func TestLotDefaultsToName(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")

	inst := mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "Batch 7", Quantity: 1})
	assert.Equal(t, "Batch 7", inst.Lot)

	_, err := CreateInstance(ctx, database, validator, "u1", InstanceInput{MasterID: m.ID, Name: "Batch 7", Quantity: 1})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCreateInstanceVariantOfOtherMaster(t *testing.T) {
	database := newInventoryDB(t)
	a := mustMaster(t, database, "u1", "A")
	b := mustMaster(t, database, "u1", "B")
	vb := mustVariant(t, database, "u1", b, "Blue")

	_, err := CreateInstance(context.Background(), database, validator, "u1", InstanceInput{
		MasterID: a.ID, VariantID: &vb.ID, Name: "x", Quantity: 1,
	})
	assert.ErrorIs(t, err, model.ErrInvalidRelation)
}

func TestCreateInstanceValidation(t *testing.T) {
	database := newInventoryDB(t)
	m := mustMaster(t, database, "u1", "Wool")

	_, err := CreateInstance(context.Background(), database, validator, "u1", InstanceInput{
		MasterID: m.ID, Name: "x", Quantity: 0, Price: ptr(-1.0),
		CategoryData: json.RawMessage(`{"purchasedAt": "yesterday"}`),
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"quantity", "price", "purchasedAt"}, fields)
}

func TestCreateInstanceEdges(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")
	v := mustVariant(t, database, "u1", m, "Blue")
	inst := mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &v.ID, Name: "x", Quantity: 1})

	rels, err := ListRelations(ctx, database, "u1")
	require.NoError(t, err)

	got := make(map[model.RelationType][2]string)
	for _, r := range rels {
		got[r.Type] = [2]string{r.FromItemID, r.ToItemID}
	}
	assert.Equal(t, map[model.RelationType][2]string{
		model.RelOwnsVariant:       {m.ID, v.ID},
		model.RelOwnsInstance:      {m.ID, inst.ID},
		model.RelVariantOfInstance: {v.ID, inst.ID},
	}, got)
}

func TestCreateRelationChecksRoles(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")
	v := mustVariant(t, database, "u1", m, "Blue")
	inst := mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "x", Quantity: 1})

	tests := []struct {
		name     string
		typ      model.RelationType
		from, to string
	}{
		{"instance to master", model.RelOwnsInstance, inst.ID, m.ID},
		{"variant to master", model.RelOwnsVariant, v.ID, m.ID},
		{"master to master", model.RelOwnsVariant, m.ID, m.ID},
		{"wrong type for roles", model.RelOwnsVariant, m.ID, inst.ID},
		{"unknown type", model.RelationType("CONTAINS"), m.ID, v.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateRelation(ctx, database, "u1", tt.typ, tt.from, tt.to)
			assert.ErrorIs(t, err, model.ErrInvalidRelation)
		})
	}

	rel, err := CreateRelation(ctx, database, "u1", model.RelVariantOfInstance, v.ID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, rel.FromItemID)

	_, err = CreateRelation(ctx, database, "u1", model.RelVariantOfInstance, v.ID, inst.ID)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCreateRelationKeepsSingleMaster(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	a := mustMaster(t, database, "u1", "A")
	b := mustMaster(t, database, "u1", "B")
	va := mustVariant(t, database, "u1", a, "Blue")
	ib := mustInstance(t, database, "u1", InstanceInput{MasterID: b.ID, Name: "x", Quantity: 1})

	_, err := CreateRelation(ctx, database, "u1", model.RelOwnsVariant, b.ID, va.ID)
	assert.ErrorIs(t, err, model.ErrInvalidRelation)
	_, err = CreateRelation(ctx, database, "u1", model.RelVariantOfInstance, va.ID, ib.ID)
	assert.ErrorIs(t, err, model.ErrInvalidRelation)
}

func TestDeleteVariant(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")
	used := mustVariant(t, database, "u1", m, "Blue")
	unused := mustVariant(t, database, "u1", m, "Red")
	mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &used.ID, Name: "x", Quantity: 1})

	assert.ErrorIs(t, DeleteVariant(ctx, database, "u1", used.ID), model.ErrConflict)
	assert.ErrorIs(t, DeleteVariant(ctx, database, "u2", unused.ID), model.ErrNotFound)
	assert.ErrorIs(t, DeleteVariant(ctx, database, "u1", m.ID), model.ErrNotFound)

	require.NoError(t, DeleteVariant(ctx, database, "u1", unused.ID))

	variants, err := ListVariants(ctx, database, "u1", m.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "Blue", variants[0].Name)

	_, err = GetItem(ctx, database, "u1", unused.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListInstances(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()
	m := mustMaster(t, database, "u1", "Wool")
	v := mustVariant(t, database, "u1", m, "Blue")
	mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, VariantID: &v.ID, Name: "b", Quantity: 1})
	mustInstance(t, database, "u1", InstanceInput{MasterID: m.ID, Name: "a", Quantity: 1})

	insts, err := ListInstances(ctx, database, "u1", m.ID)
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "a", insts[0].Name)

	_, err = ListInstances(ctx, database, "u2", m.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
