package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the wallet server reads at startup.
// Secrets can be overridden through environment variables after load.
type Config struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"server"`

	Storage struct {
		AccountsPath  string `yaml:"accounts_path"`
		JournalPath   string `yaml:"journal_path"`
		SavePeriodSec int    `yaml:"save_period_sec"`
	} `yaml:"storage"`

	Market struct {
		APIURL      string `yaml:"api_url"`
		APIKey      string `yaml:"api_key"`
		WSURL       string `yaml:"ws_url"`
		CacheTTLMin int    `yaml:"cache_ttl_min"`
	} `yaml:"market"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Server.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.Storage.AccountsPath == "" {
		return fmt.Errorf("accounts file path is required")
	}
	if c.Storage.SavePeriodSec <= 0 {
		return fmt.Errorf("save period must be positive")
	}
	if c.Market.APIURL == "" || !strings.HasPrefix(c.Market.APIURL, "http") {
		return fmt.Errorf("invalid market API URL: %s", c.Market.APIURL)
	}
	if c.Market.WSURL != "" && !strings.HasPrefix(c.Market.WSURL, "ws") {
		return fmt.Errorf("invalid market WS URL: %s", c.Market.WSURL)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BufferSize == 0 {
		cfg.Server.BufferSize = 2048
	}
	if cfg.Storage.SavePeriodSec == 0 {
		cfg.Storage.SavePeriodSec = 5
	}
	if cfg.Market.CacheTTLMin == 0 {
		cfg.Market.CacheTTLMin = 30
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

// overrideWithEnv replaces values with environment settings when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("WALLET_COINAPI_KEY"); key != "" {
		cfg.Market.APIKey = key
	}
	if addr := os.Getenv("WALLET_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
}
