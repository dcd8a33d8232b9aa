package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://ledger")
	t.Setenv("COMPRESSION_RPC_URL", "http://photon")

	cfg := Load()
	assert.Equal(t, "http://ledger", cfg.RPCUrl)
	assert.Equal(t, "http://photon", cfg.CompressionRPCUrl)
	assert.Equal(t, "http://photon", cfg.AssetIndexRPCUrl, "asset index falls back to compression rpc")
	assert.Equal(t, "redis", cfg.MetadataStore)
	assert.Equal(t, 1_400_000, cfg.ComputeUnitLimit)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2.0, cfg.ActionRate)
	assert.Equal(t, 5, cfg.ActionBurst)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://ledger")
	t.Setenv("COMPRESSION_RPC_URL", "http://photon")
	t.Setenv("ASSET_INDEX_RPC_URL", "http://das")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ALLOWED_MINTS", " a, b ,,c ")
	t.Setenv("ACTION_RATE", "0.5")

	cfg := Load()
	assert.Equal(t, "http://das", cfg.AssetIndexRPCUrl)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.AllowedMints)
	assert.Equal(t, 0.5, cfg.ActionRate)
}

func TestValidate_RequiresEndpoints(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("COMPRESSION_RPC_URL", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL")
	assert.Contains(t, err.Error(), "COMPRESSION_RPC_URL")
}

func TestValidate_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://ledger")
	t.Setenv("COMPRESSION_RPC_URL", "http://photon")
	t.Setenv("METADATA_STORE", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestValidate_ComputeUnitLimitRange(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://ledger")
	t.Setenv("COMPRESSION_RPC_URL", "http://photon")

	t.Setenv("COMPUTE_UNIT_LIMIT", "2000000")
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPUTE_UNIT_LIMIT")

	t.Setenv("COMPUTE_UNIT_LIMIT", "1400000")
	assert.NoError(t, Load().Validate())
}
