package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.DBDriver)
	assert.Equal(t, 30*24*time.Hour, cfg.JWTExpire)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "taskhub.yaml")
	content := "port: \"8080\"\ndb_driver: sqlite\nsqlite_path: /tmp/t.db\njwt_expire: 2h\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port, "environment wins over the file")
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/t.db", cfg.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpire)
}

func TestLoad_InvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "cassandra")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("jwt expire", func(t *testing.T) {
		t.Setenv("JWT_EXPIRE", "soon")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MONGO_DATABASE=from_dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MONGO_DATABASE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.MongoDatabase)
}

func TestLoad_ReleaseRequiresSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GIN_MODE", "release")

	t.Run("default jwt secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "session-from-env")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("default session secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "jwt-from-env")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_SECRET")
	})

	t.Run("both set", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "jwt-from-env")
		t.Setenv("SESSION_SECRET", "session-from-env")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestLoad_DebugAllowsDefaultSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GIN_MODE", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultJWTSecret, cfg.JWTSecret)
}
