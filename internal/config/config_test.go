package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  root: /srv/sweeplens\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/sweeplens", cfg.Storage.Root)
	require.InDelta(t, 0.1, cfg.Sampling.Period, 1e-12)
	require.Equal(t, defaultWorkers, cfg.Processing.Workers)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.False(t, cfg.Publisher.Enabled)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "storage:\n  root: /srv/sweeplens\n")
	t.Setenv("SWEEPLENS_PROCESSING_WORKERS", "9")
	t.Setenv("SWEEPLENS_STORAGE_ROOT", "/data")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Processing.Workers)
	require.Equal(t, "/data", cfg.Storage.Root)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "non positive period",
			body: "sampling:\n  period: 0\n",
			want: ErrInvalidSamplePeriod,
		},
		{
			name: "no workers",
			body: "processing:\n  workers: 0\n",
			want: ErrInvalidWorkerCount,
		},
		{
			name: "publisher without brokers",
			body: "publisher:\n  enabled: true\n",
			want: ErrEmptyPublisherBrokers,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
