package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.Set("CHAIN_MODE", "simulated")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 6, cfg.TokenDecimals)
	assert.Equal(t, "USDC", cfg.TokenSymbol)
	assert.Equal(t, "ETH", cfg.NativeSymbol)
	assert.Equal(t, 10, cfg.RpcBatchSize)
	assert.Equal(t, 4, cfg.RpcParallelism)
	assert.Equal(t, uint64(20), cfg.DirectoryWindow)
	assert.Equal(t, 10*time.Second, cfg.DirectoryPollInterval)
	assert.Equal(t, 3*time.Minute, cfg.ActionTimeout)
	assert.Equal(t, "0.00004", cfg.MinStakeNative)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("CHAIN_MODE", "rpc")
	v.Set("RPC_URL", "http://localhost:8545")
	v.Set("CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.Set("DIRECTORY_WINDOW", "5")
	v.Set("DIRECTORY_POLL_INTERVAL", "2s")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.DirectoryWindow)
	assert.Equal(t, 2*time.Second, cfg.DirectoryPollInterval)
}

func TestLoadRequiresRpcSettings(t *testing.T) {
	v := viper.New()
	_, err := Load(v)
	assert.Error(t, err)

	v.Set("CHAIN_MODE", "bogus")
	_, err = Load(v)
	assert.Error(t, err)
}
