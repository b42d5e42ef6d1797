package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/auth"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestTokenCommandUsesConfiguredSecret(t *testing.T) {
	t.Setenv("SHRAMBA_AUTH_JWT_SECRET", "cli-secret")

	token := strings.TrimSpace(run(t, "token", "owner-1"))

	claims, err := auth.ValidateToken("cli-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID())
}

func TestMigrateAndRulesCheck(t *testing.T) {
	t.Setenv("SHRAMBA_DB_PATH", filepath.Join(t.TempDir(), "cli.sqlite3"))

	out := run(t, "migrate")
	assert.Contains(t, out, "applied")

	out = run(t, "rules", "check", "owner-1")
	assert.Contains(t, out, "owner-1: 21 rules checked")
}

func TestRulesPresetsMarksDefault(t *testing.T) {
	t.Setenv("SHRAMBA_RULES_DEFAULT_PRESET", "minimal")

	out := run(t, "rules", "presets")
	assert.Contains(t, out, "minimal (default)")
	assert.Contains(t, out, "standard\n")
}
