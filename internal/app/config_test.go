package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacond.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	require.Equal(t, ":5000", cfg.ListenAddr)
	require.Equal(t, BackendSnapshot, cfg.StoreBackend)
	require.True(t, cfg.LiveEnabled)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StoreBackend = "postgres"

	require.ErrorContains(t, cfg.Validate(), `unknown store backend "postgres"`)
}

func TestApplyFile_MergesAllSettings(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
		listen_addr = ":8080"

		store "redis" {
		  addr = "redis.internal:6379"
		}

		live {
		  enabled = false
		}
	`)

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyFile(path))

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, BackendRedis, cfg.StoreBackend)
	require.Equal(t, "redis.internal:6379", cfg.RedisAddr)
	require.False(t, cfg.LiveEnabled)
}

func TestApplyFile_AbsentFieldsKeepDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
		store "memory" {}
	`)

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyFile(path))

	require.Equal(t, ":5000", cfg.ListenAddr)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, "data_store.json", cfg.SnapshotPath)
	require.True(t, cfg.LiveEnabled)
}

func TestApplyFile_ReportsParseErrors(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `listen_addr = `)

	cfg := DefaultConfig()
	require.ErrorContains(t, cfg.ApplyFile(path), "failed to parse config file")
}

func TestApplyEnv_OverridesFileSettings(t *testing.T) {
	t.Setenv("BEACOND_LISTEN_ADDR", ":9999")
	t.Setenv("BEACOND_STORE_BACKEND", "memory")
	t.Setenv("BEACOND_SNAPSHOT_PATH", "/var/lib/beacond/store.json")
	t.Setenv("BEACOND_REDIS_ADDR", "10.0.0.5:6379")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	require.Equal(t, ":9999", cfg.ListenAddr)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, "/var/lib/beacond/store.json", cfg.SnapshotPath)
	require.Equal(t, "10.0.0.5:6379", cfg.RedisAddr)
}
