// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Contains(t, cfg.Logger().LogFile, ".pagepilot")
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 1280, cfg.Browser().Viewport["width"])
	assert.Equal(t, 5*time.Second, cfg.Engine().BridgeTimeout)
	assert.Equal(t, 500, cfg.Engine().CharByCharLimit)
	assert.Equal(t, 15*time.Millisecond, cfg.Engine().JitterMin)
	assert.Equal(t, 40*time.Millisecond, cfg.Engine().JitterMax)
	assert.Equal(t, 300*time.Millisecond, cfg.Engine().Settle.Click)
	assert.Equal(t, ":9224", cfg.Relay().ListenAddr)
	assert.Equal(t, []string{"pi", "--mode", "rpc", "--no-session"}, cfg.Relay().AgentCommand)
	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Zero bridge timeout", func(c *Config) { c.EngineCfg.BridgeTimeout = 0 }, "bridge_timeout"},
		{"Negative char limit", func(c *Config) { c.EngineCfg.CharByCharLimit = -1 }, "char_by_char_limit"},
		{"Inverted jitter", func(c *Config) { c.EngineCfg.JitterMax = time.Millisecond }, "jitter range"},
		{"Blank world name", func(c *Config) { c.EngineCfg.WorldName = "  " }, "world_name"},
		{"Missing listen address", func(c *Config) { c.RelayCfg.ListenAddr = "" }, "listen_addr"},
		{"Empty agent command", func(c *Config) { c.RelayCfg.AgentCommand = nil }, "agent_command"},
		{"Zero restart burst", func(c *Config) { c.RelayCfg.RestartBurst = 0 }, "restart_burst"},
		{"Zero restart interval", func(c *Config) { c.RelayCfg.RestartInterval = 0 }, "restart_interval"},
		{"Negative navigation timeout", func(c *Config) { c.BrowserCfg.NavigationTimeout = -time.Second }, "navigation_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	yaml := []byte(`
logger:
  level: debug
browser:
  headless: false
  remote_url: ws://127.0.0.1:9222/devtools/browser/abc
  args: ["--lang=en-US"]
engine:
  bridge_timeout: 2s
  settle:
    click: 150ms
relay:
  listen_addr: 127.0.0.1:9300
  agent_command: ["node", "agent.js"]
`)
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser().RemoteURL)
	assert.Equal(t, []string{"--lang=en-US"}, cfg.Browser().Args)
	assert.Equal(t, 2*time.Second, cfg.Engine().BridgeTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Engine().Settle.Click)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.Engine().Settle.Focus)
	assert.Equal(t, "127.0.0.1:9300", cfg.Relay().ListenAddr)
	assert.Equal(t, []string{"node", "agent.js"}, cfg.Relay().AgentCommand)
}

func TestNewConfigFromViper_RejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("relay.restart_burst", 0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetBrowserHeadless(false)
	iface.SetBrowserRemoteURL("http://localhost:9222")
	iface.SetRelayListenAddr(":1234")
	cmd := []string{"agent"}
	iface.SetRelayAgentCommand(cmd)
	cmd[0] = "mutated"

	assert.False(t, iface.Browser().Headless)
	assert.Equal(t, "http://localhost:9222", iface.Browser().RemoteURL)
	assert.Equal(t, ":1234", iface.Relay().ListenAddr)
	assert.Equal(t, []string{"agent"}, iface.Relay().AgentCommand)
}
