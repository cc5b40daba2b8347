package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smart-dag/txevent/pkg/hub"
)

type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MockHub   MockHubConfig   `yaml:"mock_hub"`
}

type HubConfig struct {
	Address           string        `yaml:"address"`
	PeerID            string        `yaml:"peer_id"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
}

type ReconnectConfig struct {
	// Strategy is "fixed" or "exponential".
	Strategy string        `yaml:"strategy"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	Factor   float64       `yaml:"factor"`
}

type WatchConfig struct {
	Addresses []string `yaml:"addresses"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

type MockHubConfig struct {
	Listen         string        `yaml:"listen"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
	Addresses      []string      `yaml:"addresses"`
}

func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Address:           hub.DefaultAddress,
			HeartbeatInterval: hub.DefaultHeartbeatInterval,
			ConnectTimeout:    hub.DefaultConnectTimeout,
			SettleDelay:       hub.DefaultSettleDelay,
			RequestTimeout:    hub.DefaultRequestTimeout,
			ReadTimeout:       hub.DefaultReadTimeout,
		},
		Reconnect: ReconnectConfig{
			Strategy: "fixed",
			Delay:    hub.DefaultReconnectDelay,
			MaxDelay: time.Minute,
			Factor:   2,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		MockHub: MockHubConfig{
			Listen:         ":6615",
			NotifyInterval: 2 * time.Second,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	switch c.Reconnect.Strategy {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("reconnect.strategy: unknown strategy %q", c.Reconnect.Strategy)
	}
	if c.Reconnect.Delay <= 0 {
		return errors.New("reconnect.delay must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Hub.RequestTimeout < 0 {
		return errors.New("hub.request_timeout must not be negative")
	}
	return nil
}

// ReconnectPolicy builds the policy described by the reconnect section.
func (c *Config) ReconnectPolicy() hub.ReconnectPolicy {
	if c.Reconnect.Strategy == "exponential" {
		return hub.ExponentialBackoff{
			Base:   c.Reconnect.Delay,
			Factor: c.Reconnect.Factor,
			Max:    c.Reconnect.MaxDelay,
		}
	}
	return hub.FixedDelay(c.Reconnect.Delay)
}
