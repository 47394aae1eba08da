// Copyright 2025 ChorusOne
// This file is part of the monad-staking-indexer library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
rpc_urls = ["wss://a.example.com", "wss://b.example.com"]
database_host = "localhost"
database_port = 5432
database_user = "indexer"
database_name = "staking"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://a.example.com", "wss://b.example.com"}, cfg.RPCURLs)
	assert.Equal(t, uint64(100), cfg.BackfillChunkSize)
	assert.Equal(t, uint64(300), cfg.GapCheckIntervalSecs)
	assert.Equal(t, 10, cfg.DatabaseMaxConns)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingRPCURLsIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`database_host = "x"
database_user = "x"
database_name = "x"
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidLogLevelIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_urls = ["wss://a.example.com"]
database_host = "x"
database_user = "x"
database_name = "x"
[logging]
level = "verbose"
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesRPCURLs(t *testing.T) {
	t.Setenv("INDEXER_RPC_URLS", "wss://x.example.com,wss://y.example.com")
	t.Setenv("INDEXER_DATABASE_HOST", "db.internal")
	t.Setenv("INDEXER_DATABASE_USER", "u")
	t.Setenv("INDEXER_DATABASE_NAME", "n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://x.example.com", "wss://y.example.com"}, cfg.RPCURLs)
	assert.Equal(t, "db.internal", cfg.DatabaseHost)
}

func TestMetricsAddrAndDSN(t *testing.T) {
	cfg := Defaults
	cfg.Metrics.BindAddress = "0.0.0.0"
	cfg.Metrics.Port = 9100
	assert.Equal(t, "0.0.0.0:9100", cfg.MetricsAddr())

	cfg.DatabaseUser = "u"
	cfg.DatabasePassword = "p"
	cfg.DatabaseHost = "h"
	cfg.DatabasePort = 5432
	cfg.DatabaseName = "n"
	assert.Equal(t, "postgres://u:p@h:5432/n", cfg.DSN())
}
