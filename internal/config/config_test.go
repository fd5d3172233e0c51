package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty dir so no user config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestDefaultConfig(t *testing.T) {
	home := isolate(t)

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".strata", "strata.db"), cfg.DB)
	assert.Equal(t, "default", cfg.Tenant)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 50, cfg.Recurrence.MaxCount)
	assert.Equal(t, BackendFS, cfg.Artifact.Backend)
	assert.Equal(t, ExporterNone, cfg.Trace.Exporter)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STRATA_TENANT", "acme")
	t.Setenv("STRATA_USER", "dana")
	t.Setenv("STRATA_LOG_USE_CASES", "true")
	t.Setenv("STRATA_RECURRENCE_MAX_COUNT", "7")
	t.Setenv("STRATA_TRACE_EXPORTER", "stdout")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Tenant)
	assert.Equal(t, "dana", cfg.User)
	assert.True(t, cfg.LogUseCases)
	assert.Equal(t, 7, cfg.Recurrence.MaxCount)
	assert.Equal(t, ExporterStdout, cfg.Trace.Exporter)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(t.TempDir(), "strata.yaml")
	body := "tenant: filetenant\ntimezone: Europe/Berlin\ndb: ~/data/s.db\nartifact:\n  backend: gcs\n  gcs_bucket: exports\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("STRATA_TENANT", "envtenant")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "envtenant", cfg.Tenant)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, filepath.Join(home, "data", "s.db"), cfg.DB)
	assert.Equal(t, BackendGCS, cfg.Artifact.Backend)
	assert.Equal(t, "exports", cfg.Artifact.GCSBucket)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"unknown backend", "STRATA_ARTIFACT_BACKEND", "s3", "backend"},
		{"gcs without bucket", "STRATA_ARTIFACT_BACKEND", "gcs", "gcsbucket"},
		{"unknown exporter", "STRATA_TRACE_EXPORTER", "jaeger", "exporter"},
		{"zero max count", "STRATA_RECURRENCE_MAX_COUNT", "0", "maxcount"},
		{"bad timezone", "STRATA_TIMEZONE", "Mars/Olympus", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	cfg := Config{Timezone: "Nowhere/Special"}
	assert.Equal(t, "UTC", cfg.Location().String())
}
