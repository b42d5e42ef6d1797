package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/db"
)

func TestEnsureSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := EnsureSecret(ctx, database, SettingJWTSecret)
	require.NoError(t, err)
	assert.Len(t, secret1, 64) // 32 bytes = 64 hex chars

	secret2, err := EnsureSecret(ctx, database, SettingJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, secret1, secret2)
}

func TestPutSettingOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, found, err := getSetting(ctx, database, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, putSetting(ctx, database, "k", "a"))
	require.NoError(t, putSetting(ctx, database, "k", "b"))

	value, found, err := getSetting(ctx, database, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b", value)
}
