package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasSaneDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 3, cfg.Reconciler.MaxSubmissionRetries)
	assert.NotEmpty(t, cfg.NameGen.Adjectives)
	assert.NotEmpty(t, cfg.NameGen.Nouns)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 127.0.0.1\n  port: 9090\n"), 0644))

	t.Setenv("CONFIG_FILE", path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
}

func TestDatabaseURLOverridesDSN(t *testing.T) {
	cfg := New()
	t.Setenv("DATABASE_URL", "postgres://u:p@host/db")
	applyDatabaseURLOverride(cfg)
	assert.Equal(t, "postgres://u:p@host/db", cfg.Database.DSN)
}

func TestConnectionStringFormat(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.ConnectionString())
}
