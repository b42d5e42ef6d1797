package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	version, err := Migrate(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	statuses, err := Status(ctx, database)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Path)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(
		`INSERT INTO locations (id, owner_id, name, type, parent_id, code) VALUES ('a', 'u', 'Box', 'box', 'missing', '001')`,
	)
	assert.Error(t, err, "parent_id must reference an existing location")
}

func TestDSN(t *testing.T) {
	assert.Contains(t, DSN("/tmp/x.sqlite3"), "_txlock=immediate")

	dsn := DSN("file:custom?mode=ro&_pragma=busy_timeout(100)")
	assert.True(t, strings.HasPrefix(dsn, "file:custom?mode=ro&_pragma=busy_timeout(100)&"), dsn)
	assert.Equal(t, 1, strings.Count(dsn, "busy_timeout"), "own pragma is not overridden")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")

	assert.Equal(t, "file:bare?"+strings.Join(pragmas, "&"), DSN("file:bare"))
}
