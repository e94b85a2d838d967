package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(tb testing.TB, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "config.json")
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"data-dir": "/tmp/node",
		"set": "shopping",
		"logging": {"level": "debug", "modules": {"sync": "warn"}},
		"p2p": {
			"listen": "/ip4/127.0.0.1/tcp/0",
			"log-level": "error",
			"bootnodes": ["/ip4/10.0.0.1/tcp/7613/p2p/12D3KooWJBpAAbVTH6oFr9BrkNMn6pxjK4qDmF6LG8V5tTtKVsye"]
		},
		"gossip": {"flood": false, "max-message-size": 65536},
		"agent": {
			"gossip-interval": "3s",
			"sync": {"request-timeout": "1m", "max-pending-ops": 10}
		}
	}`)
	cfg := DefaultConfig()
	require.NoError(t, Load(path, &cfg))

	require.Equal(t, "/tmp/node", cfg.DataDir)
	require.Equal(t, "shopping", cfg.Set)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "warn", cfg.Logging.Modules["sync"])
	require.Equal(t, "/ip4/127.0.0.1/tcp/0", cfg.P2P.Listen)
	require.Len(t, cfg.P2P.Bootnodes, 1)
	require.Equal(t, zapcore.ErrorLevel, cfg.P2P.LogLevel)
	require.False(t, cfg.Gossip.Flood)
	require.Equal(t, 65536, cfg.Gossip.MaxMessageSize)
	require.Equal(t, 3*time.Second, cfg.Agent.GossipInterval)
	require.Equal(t, time.Minute, cfg.Agent.Sync.RequestTimeout)
	require.Equal(t, 10, cfg.Agent.Sync.MaxPendingOps)
	// untouched values keep defaults
	require.Equal(t, DefaultConfig().Agent.Sync.MaxOpsPerRequest, cfg.Agent.Sync.MaxOpsPerRequest)
	require.Equal(t, DefaultConfig().Store, cfg.Store)
}

func TestLoadCommaSeparatedBootnodes(t *testing.T) {
	path := writeConfig(t, `{"p2p": {"bootnodes": "/dns4/a/tcp/1,/dns4/b/tcp/2"}}`)
	cfg := DefaultConfig()
	require.NoError(t, Load(path, &cfg))
	require.Equal(t, []string{"/dns4/a/tcp/1", "/dns4/b/tcp/2"}, cfg.P2P.Bootnodes)
}

func TestLoadErrors(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, Load(filepath.Join(t.TempDir(), "missing.json"), &cfg))

	unknown := writeConfig(t, `{"p2p": {"flood": true}}`)
	require.ErrorContains(t, Load(unknown, &cfg), "flood")
}

func TestValidateReportsEverySection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Set = ""
	cfg.P2P.QueueSize = 0
	cfg.Agent.Sync.RequestTimeout = 0
	err := cfg.Validate()
	require.ErrorContains(t, err, "set is empty")
	require.ErrorContains(t, err, "queue size")
	require.ErrorContains(t, err, "timeouts")
}
