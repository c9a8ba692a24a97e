package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDaemonConfigDefaults(t *testing.T) {
	cfg, err := LoadDaemonConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.Server.Addr)
	assert.Equal(t, "/etc/configd/seed.yaml", cfg.SeedPath)
	assert.NotEmpty(t, cfg.ServiceID)
}

func TestLoadDaemonConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9443\"\nseed_path: \"/tmp/seed.yaml\"\n"), 0644))

	cfg, err := LoadDaemonConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9443", cfg.Server.Addr)
	assert.Equal(t, "/tmp/seed.yaml", cfg.SeedPath)
}

func TestLoadProviderConfigDefaults(t *testing.T) {
	cfg, err := LoadProviderConfig("")
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Persistency.Backend)
	assert.Equal(t, 0, cfg.MaxSamplesLimit)
}

func TestLoadProviderConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configproviderd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persistency:\n  backend: \"postgres\"\n"), 0644))

	_, err := LoadProviderConfig(path)
	require.Error(t, err)
}
