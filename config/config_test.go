package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapterkit/go-cachekit/cachekey"
	"github.com/adapterkit/go-cachekit/store"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvRedisHost, EnvRedisPort, EnvRedisPath, EnvRedisURL, EnvRedisPassword,
		EnvRedisConnectTimeout, EnvRedisMaxCooldown, EnvRedisTimeout,
		EnvRedisMaxQueued, EnvMaxAge, EnvKeyMode, EnvKeyIgnoredProps,
		EnvKeyIncludedProps,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, 6379, cfg.Store.Port)
	assert.Equal(t, store.DefaultConnectTimeout, cfg.Store.ConnectTimeout)
	assert.Equal(t, store.DefaultMaxCooldown, cfg.Store.MaxCooldown)
	assert.Equal(t, store.DefaultCallTimeout, cfg.Store.CallTimeout)
	assert.Equal(t, store.DefaultEntryTTL, cfg.Store.DefaultTTL)
	assert.Equal(t, store.DefaultMaxQueued, cfg.Store.MaxQueued)
	assert.Equal(t, cachekey.ModeExclude, cfg.KeyMode)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRedisHost, "redis.internal")
	t.Setenv(EnvRedisPort, "6380")
	t.Setenv(EnvRedisPassword, "hunter2")
	t.Setenv(EnvRedisTimeout, "250")      // bare milliseconds
	t.Setenv(EnvMaxAge, "2m")             // duration expression
	t.Setenv(EnvRedisConnectTimeout, "30s")
	t.Setenv(EnvRedisMaxQueued, "50")
	t.Setenv(EnvKeyMode, "include")
	t.Setenv(EnvKeyIgnoredProps, "sessionId, traceId")
	t.Setenv(EnvKeyIncludedProps, "payload")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal", cfg.Store.Host)
	assert.Equal(t, 6380, cfg.Store.Port)
	assert.Equal(t, "hunter2", cfg.Store.Password)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.CallTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Store.DefaultTTL)
	assert.Equal(t, 30*time.Second, cfg.Store.ConnectTimeout)
	assert.Equal(t, 50, cfg.Store.MaxQueued)
	assert.Equal(t, cachekey.ModeInclude, cfg.KeyMode)
	assert.Contains(t, cfg.KeyOptions.Excluded, "sessionId")
	assert.Contains(t, cfg.KeyOptions.Excluded, "traceId")
	assert.Contains(t, cfg.KeyOptions.Excluded, "id") // defaults kept
	assert.Contains(t, cfg.KeyOptions.Included, "payload")
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)

	t.Setenv(EnvRedisPort, "not-a-port")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv(EnvRedisTimeout, "not-a-duration")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv(EnvKeyMode, "bogus")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "cachekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  host: redis.file
  port: 7000
  timeout: 750ms
cache:
  maxAge: 60000
key:
  mode: include
  ignoredProps: [sessionId]
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.file", cfg.Store.Host)
	assert.Equal(t, 7000, cfg.Store.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.CallTimeout)
	assert.Equal(t, time.Minute, cfg.Store.DefaultTTL)
	assert.Equal(t, cachekey.ModeInclude, cfg.KeyMode)
	assert.Contains(t, cfg.KeyOptions.Excluded, "sessionId")
}

func TestLoadFileEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRedisHost, "redis.env")

	path := filepath.Join(t.TempDir(), "cachekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  host: redis.file\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.env", cfg.Store.Host)
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Store.Host)
}

func TestLoadFileMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis: ["), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestInstanceIDUniquePerLoad(t *testing.T) {
	clearEnv(t)
	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)
	assert.NotEqual(t, a.InstanceID, b.InstanceID)
}
