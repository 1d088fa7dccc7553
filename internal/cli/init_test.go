package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funetec/internal/config"
)

func TestOpenRepository_CreatesDirectory(t *testing.T) {
	cfg := &config.Config{
		SQLiteDBPath:      filepath.Join(t.TempDir(), "nested", "data", "funetec.db"),
		SQLiteBusyTimeout: time.Second,
	}
	repo, err := OpenRepository(cfg)
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NotZero(t, version)
}

func TestConnectBroker_Disabled(t *testing.T) {
	client, err := ConnectBroker(&config.Config{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid port")
}
