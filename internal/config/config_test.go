package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const machineID = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
rpc_list:
  - https://api.devnet.solana.com
websocket_url: wss://api.devnet.solana.com
candy_machine_id: `+machineID+`
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.TxTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.RebroadcastInterval())
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 20*time.Second, cfg.BlockhashCacheTTL())
	assert.Equal(t, 4, cfg.BuildConcurrency)
	assert.True(t, cfg.PollStatus)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, DefaultNATSSubjectPrefix, cfg.NATSSubjectPrefix)
	assert.Equal(t, zapcore.InfoLevel, cfg.ZapLevel())

	txCfg := cfg.TransactionConfig()
	assert.Equal(t, rpc.CommitmentProcessed, txCfg.Commitment)
	assert.True(t, txCfg.Poll)
	assert.Equal(t, 60*time.Second, txCfg.Timeout)

	id, err := cfg.CandyMachine()
	require.NoError(t, err)
	assert.Equal(t, machineID, id.String())
	assert.True(t, cfg.TreasuryKey().IsZero())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rpc_list: [https://a.example.com]
tx_timeout_ms: 30000
`)
	t.Setenv("CANDY_MINT_RPC_LIST", "https://b.example.com, https://c.example.com ,")
	t.Setenv("CANDY_MINT_POLL_STATUS", "false")
	t.Setenv("CANDY_MINT_COMMITMENT", "confirmed")
	t.Setenv("CANDY_MINT_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example.com", "https://c.example.com"}, cfg.RPCList)
	assert.False(t, cfg.PollStatus)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, 30*time.Second, cfg.TxTimeout())
	assert.Equal(t, zapcore.WarnLevel, cfg.ZapLevel())

	_, err = cfg.CandyMachine()
	assert.Error(t, err)
}

func TestLoadConfigEnvOnly(t *testing.T) {
	t.Setenv("CANDY_MINT_RPC_LIST", "http://127.0.0.1:8899")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://127.0.0.1:8899"}, cfg.RPCList)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := map[string]string{
		"empty rpc list":      `rpc_list: []`,
		"bad rpc scheme":      `rpc_list: [ftp://a.example.com]`,
		"bad ws scheme":       "rpc_list: [https://a.example.com]\nwebsocket_url: https://a.example.com",
		"bad commitment":      "rpc_list: [https://a.example.com]\ncommitment: max",
		"zero timeout":        "rpc_list: [https://a.example.com]\ntx_timeout_ms: 0",
		"rebroadcast too big": "rpc_list: [https://a.example.com]\ntx_timeout_ms: 400",
		"bad machine id":      "rpc_list: [https://a.example.com]\ncandy_machine_id: nope",
		"bad treasury":        "rpc_list: [https://a.example.com]\ntreasury: 0OIl",
		"concurrency too low": "rpc_list: [https://a.example.com]\nbuild_concurrency: 0",
		"bad nats url":        "rpc_list: [https://a.example.com]\nnats_url: http://localhost:4222",
		"bad log level":       "rpc_list: [https://a.example.com]\nlog_level: loud",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestURLCacheIsPerProtocol(t *testing.T) {
	const addr = "https://shared.example.com"
	require.NoError(t, validateURLWithCache(addr, "http"))
	assert.Error(t, validateURLWithCache(addr, "ws"))
	assert.Error(t, validateURLWithCache(addr, "nats"))

	_, err := LoadConfig(writeConfig(t, "rpc_list: ["+addr+"]\nwebsocket_url: "+addr))
	assert.ErrorContains(t, err, "WebSocket")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
