package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
)

func TestBootstrap(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	h, err := GetHealth(ctx, database, "u1")
	require.NoError(t, err)
	assert.Equal(t, Health{}, *h)

	require.NoError(t, EnsureDefaultCategories(ctx, database))
	require.NoError(t, EnsureDefaultCategories(ctx, database), "bootstrap is repeatable")

	root, err := EnsureRootLocation(ctx, database, standardRules, DefaultCodeFormat, "u1")
	require.NoError(t, err)
	assert.Equal(t, RootLocationName, root.Name)
	assert.Equal(t, model.LocationRoom, root.Type)

	again, err := EnsureRootLocation(ctx, database, standardRules, DefaultCodeFormat, "u1")
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)
	assert.Equal(t, 1, countLocations(t, database, "u1"))

	h, err = GetHealth(ctx, database, "u1")
	require.NoError(t, err)
	assert.True(t, h.Ready)

	h, err = GetHealth(ctx, database, "u2")
	require.NoError(t, err)
	assert.True(t, h.CategoriesReady)
	assert.False(t, h.Ready)
}

func TestCategories(t *testing.T) {
	database := newInventoryDB(t)
	ctx := context.Background()

	masters, err := ListCategories(ctx, database, model.RoleMaster)
	require.NoError(t, err)
	require.Len(t, masters, 1)
	assert.Equal(t, model.CategoryYarn, masters[0].ID)

	cat, err := CreateCategory(ctx, database, NewCategory{
		ID:     "fabric",
		Name:   "Fabric",
		Role:   model.RoleMaster,
		Schema: []byte(`{"fields":[{"name":"widthCm","type":"number","rules":"gt=0"}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "fabric", cat.ID)

	_, err = CreateCategory(ctx, database, NewCategory{ID: "fabric", Name: "Again", Role: model.RoleMaster})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = CreateCategory(ctx, database, NewCategory{
		Name:   "",
		Role:   "owner",
		Schema: []byte(`{"fields":[{"name":"x","type":"date"}]}`),
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	_, err = GetCategory(ctx, database, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
