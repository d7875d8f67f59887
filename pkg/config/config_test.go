package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solidb/solidb/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, ":16746", cfg.ListenAddr)
	require.Equal(t, ":16747", cfg.DriverListenAddr)
	require.Equal(t, 30, cfg.QueryTimeoutS)
	require.Equal(t, "http", cfg.ClusterScheme)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solidb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/solidb\nquery_timeout_s: 5\n"), 0644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/solidb", cfg.DataDir)
	require.Equal(t, 5, cfg.QueryTimeoutS)
	require.Equal(t, 60, cfg.TTLSweepIntervalS) // unset key keeps default
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SOLIDB_LISTEN_ADDR", ":9000")
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, int64(30), int64(cfg.QueryTimeout().Seconds()))
	require.Equal(t, int64(100), cfg.SlowQueryThreshold().Milliseconds())
}
