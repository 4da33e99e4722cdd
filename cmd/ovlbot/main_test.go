package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekodylan/OVL-MD/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewOvlbotCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.True(t, strings.HasPrefix(out, "ovlbot version: dev"))
}

func TestCommandsListsBuiltins(t *testing.T) {
	out := execute(t, "commands", "--category", "Owner")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "addsudo")
	assert.NotContains(t, out, "antilink")
}

func TestCommandsLoadsExtraDir(t *testing.T) {
	dir := t.TempDir()
	manifest := "category: Fun\ncommands:\n  - name: salut\n    handler: ping\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fun.yaml"), []byte(manifest), 0o644))

	out := execute(t, "commands", "--dir", dir)
	assert.Contains(t, out, "salut")
	assert.Contains(t, out, "Fun")
}

func TestPingURL(t *testing.T) {
	var cfg config.Config
	cfg.HTTP.Port = 3000
	assert.Equal(t, "http://127.0.0.1:3000/ping", pingURL(cfg))
	cfg.HTTP.PublicURL = "https://ovl.onrender.com/"
	assert.Equal(t, "https://ovl.onrender.com/ping", pingURL(cfg))
}

func TestMigrateStatusOnFreshDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ovl.db")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("LOG_LEVEL", "error")

	out := execute(t, "migrate", "status")
	assert.Contains(t, out, "schema version 0")

	out = execute(t, "migrate", "up")
	assert.Contains(t, out, "schema version 2 (clean, sqlite)")
}
