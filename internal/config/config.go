// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Relay() RelayConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(string)

	// Relay Setters
	SetRelayListenAddr(string)
	SetRelayAgentCommand([]string)
}

// Config holds the entire application configuration. Sections are exported so
// viper can decode into them; callers go through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	RelayCfg   RelayConfig   `mapstructure:"relay" yaml:"relay"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Relay() RelayConfig     { return c.RelayCfg }

// --- Interface Method Implementations (Setters) ---

// Browser Setters
func (c *Config) SetBrowserHeadless(b bool)     { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserRemoteURL(u string) { c.BrowserCfg.RemoteURL = u }

// Relay Setters
func (c *Config) SetRelayListenAddr(addr string) { c.RelayCfg.ListenAddr = addr }
func (c *Config) SetRelayAgentCommand(cmd []string) {
	c.RelayCfg.AgentCommand = append([]string(nil), cmd...)
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance the engine drives.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides Chrome discovery.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// instead of launching one.
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// EngineConfig tunes the action execution engine.
type EngineConfig struct {
	// BridgeTimeout bounds each call into the page's main world.
	BridgeTimeout time.Duration `mapstructure:"bridge_timeout" yaml:"bridge_timeout"`
	// WorldName names the isolated world the engine runs its DOM work in.
	WorldName string `mapstructure:"world_name" yaml:"world_name"`
	// CharByCharLimit is the text length, in characters, from which typing
	// switches to a single bulk insertion.
	CharByCharLimit int            `mapstructure:"char_by_char_limit" yaml:"char_by_char_limit"`
	JitterMin       time.Duration  `mapstructure:"jitter_min" yaml:"jitter_min"`
	JitterMax       time.Duration  `mapstructure:"jitter_max" yaml:"jitter_max"`
	Settle          SettleConfig   `mapstructure:"settle" yaml:"settle"`
}

// SettleConfig holds the pauses the engine takes to let page scripts react.
type SettleConfig struct {
	Focus  time.Duration `mapstructure:"focus" yaml:"focus"`
	Select time.Duration `mapstructure:"select" yaml:"select"`
	Delete time.Duration `mapstructure:"delete" yaml:"delete"`
	Click  time.Duration `mapstructure:"click" yaml:"click"`
	Type   time.Duration `mapstructure:"type" yaml:"type"`
	Submit time.Duration `mapstructure:"submit" yaml:"submit"`
	Scroll time.Duration `mapstructure:"scroll" yaml:"scroll"`
}

// RelayConfig configures the WebSocket relay to the agent process.
type RelayConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	AgentCommand    []string      `mapstructure:"agent_command" yaml:"agent_command"`
	RestartBurst    int           `mapstructure:"restart_burst" yaml:"restart_burst"`
	RestartInterval time.Duration `mapstructure:"restart_interval" yaml:"restart_interval"`
	// UpdateRepo is the owner/name of the GitHub repository checked for
	// newer releases.
	UpdateRepo string `mapstructure:"update_repo" yaml:"update_repo"`
}

// StateDir returns the directory holding the log file and other local state.
func StateDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".pagepilot"
	}
	return filepath.Join(home, ".pagepilot")
}

// NewDefaultConfig creates a configuration populated with all defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", filepath.Join(StateDir(), "pagepilot.log"))
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 900})
	v.SetDefault("browser.navigation_timeout", "15s")

	// -- Engine --
	v.SetDefault("engine.bridge_timeout", "5s")
	v.SetDefault("engine.world_name", "pagepilot")
	v.SetDefault("engine.char_by_char_limit", 500)
	v.SetDefault("engine.jitter_min", "15ms")
	v.SetDefault("engine.jitter_max", "40ms")
	v.SetDefault("engine.settle.focus", "100ms")
	v.SetDefault("engine.settle.select", "50ms")
	v.SetDefault("engine.settle.delete", "50ms")
	v.SetDefault("engine.settle.click", "300ms")
	v.SetDefault("engine.settle.type", "200ms")
	v.SetDefault("engine.settle.submit", "200ms")
	v.SetDefault("engine.settle.scroll", "500ms")

	// -- Relay --
	v.SetDefault("relay.listen_addr", ":9224")
	v.SetDefault("relay.agent_command", []string{"pi", "--mode", "rpc", "--no-session"})
	v.SetDefault("relay.restart_burst", 3)
	v.SetDefault("relay.restart_interval", "10s")
	v.SetDefault("relay.update_repo", "xkilldash9x/pagepilot")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if err := c.RelayCfg.Validate(); err != nil {
		return fmt.Errorf("relay configuration invalid: %w", err)
	}
	if c.BrowserCfg.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must not be negative")
	}
	return nil
}

// Validate checks the engine settings.
func (e *EngineConfig) Validate() error {
	if e.BridgeTimeout <= 0 {
		return fmt.Errorf("bridge_timeout must be a positive duration")
	}
	if e.CharByCharLimit < 0 {
		return fmt.Errorf("char_by_char_limit must not be negative")
	}
	if e.JitterMin < 0 || e.JitterMax < e.JitterMin {
		return fmt.Errorf("jitter range [%s, %s] is invalid", e.JitterMin, e.JitterMax)
	}
	if strings.TrimSpace(e.WorldName) == "" {
		return fmt.Errorf("world_name is required")
	}
	return nil
}

// Validate checks the relay settings.
func (r *RelayConfig) Validate() error {
	if r.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if len(r.AgentCommand) == 0 || r.AgentCommand[0] == "" {
		return fmt.Errorf("agent_command must name an executable")
	}
	if r.RestartBurst <= 0 {
		return fmt.Errorf("restart_burst must be a positive integer")
	}
	if r.RestartInterval <= 0 {
		return fmt.Errorf("restart_interval must be a positive duration")
	}
	return nil
}
