package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Pipeline.TopKRetrieve, cfg.Pipeline.TopKRetrieve)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  top_k_final: 7\ncache:\n  ttl: 90s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pipeline.TopKFinal)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Std())
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Pipeline.TopKRetrieve)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JOBMATCH_DB_DSN", "postgres://test:5432/x")
	t.Setenv("JOBMATCH_REDIS_ADDR", "redis-test:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://test:5432/x", cfg.DB.DSN)
	assert.Equal(t, "redis-test:6379", cfg.Redis.Addr)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Run("pool bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DB.PoolMin = 20
		cfg.DB.PoolMax = 5
		assert.Error(t, cfg.Validate())
	})

	t.Run("top_k ordering", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Pipeline.TopKFinal = 200
		assert.Error(t, cfg.Validate())
	})

	t.Run("ann index", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ANN.Index = "flat"
		assert.Error(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Pipeline.TopKFinal = 11
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 11, loaded.Pipeline.TopKFinal)
	assert.Equal(t, cfg.Cache.TTL, loaded.Cache.TTL)
}

func TestGenerateDefaultKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	require.NoError(t, GenerateDefault(path))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDurationYAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte("1m30s"), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	out, err := yaml.Marshal(Duration(250 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "250ms\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("fast"), &d))
}
