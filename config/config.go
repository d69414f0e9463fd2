package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	FWLog FWLogConfig `yaml:"fwlog"`
}

// FWLogConfig is the project configuration.
type FWLogConfig struct {
	Directory DirectoryConfig `yaml:"directory"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Rules     RulesConfig     `yaml:"rules"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Queue     QueueConfig     `yaml:"queue"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DirectoryConfig points at the device directory file.
type DirectoryConfig struct {
	Path string `yaml:"path"`
}

// RetrievalConfig controls vendor sessions and the worker pool.
type RetrievalConfig struct {
	Workers         int           `yaml:"workers"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	Deadline        time.Duration `yaml:"deadline"`
	PageSize        int           `yaml:"page_size"`
	MaxRows         int           `yaml:"max_rows"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
	// VerifyTLS enables certificate checks; management planes usually
	// present self-signed certificates.
	VerifyTLS       bool          `yaml:"verify_tls"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	TrafficLookback time.Duration `yaml:"traffic_lookback"`
	SystemLookback  time.Duration `yaml:"system_lookback"`
}

// NormalizeConfig extends the built-in alias tables.
type NormalizeConfig struct {
	ExtraAliases ExtraAliasesConfig `yaml:"extra_aliases"`
}

// ExtraAliasesConfig maps canonical field -> additional source keys, per log kind.
type ExtraAliasesConfig struct {
	Traffic map[string][]string `yaml:"traffic"`
	System  map[string][]string `yaml:"system"`
}

// RulesConfig controls Sigma record tagging.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// QueueConfig controls the Redis query queue used by serve mode.
type QueueConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Redis        RedisConfig   `yaml:"redis"`
	Workers      int           `yaml:"workers"`
	ReplyTTL     time.Duration `yaml:"reply_ttl"`
	ReplyPrefix  string        `yaml:"reply_prefix"`
	CallbackHTTP HTTPConfig    `yaml:"callback_http"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// HTTPConfig config for callback delivery.
type HTTPConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// APIConfig controls the HTTP query API used by serve mode.
type APIConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "fwlog.yml"

// FindConfigFile resolves the config path: the explicit argument when it
// exists, then ./fwlog.yml, then fwlog.yml next to the executable.
func FindConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), DefaultFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return DefaultFileName
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.FWLog

	if c.Directory.Path == "" {
		c.Directory.Path = "devices.yml"
	}

	if c.Retrieval.Workers <= 0 {
		c.Retrieval.Workers = 4
	}
	if c.Retrieval.PollInterval <= 0 {
		c.Retrieval.PollInterval = 1 * time.Second
	}
	if c.Retrieval.Deadline <= 0 {
		c.Retrieval.Deadline = 20 * time.Second
	}
	if c.Retrieval.PageSize <= 0 {
		c.Retrieval.PageSize = 100
	}
	if c.Retrieval.MaxRows <= 0 {
		c.Retrieval.MaxRows = 100
	}
	if c.Retrieval.HTTPTimeout <= 0 {
		c.Retrieval.HTTPTimeout = 30 * time.Second
	}
	if c.Retrieval.TeardownTimeout <= 0 {
		c.Retrieval.TeardownTimeout = 5 * time.Second
	}
	if c.Retrieval.RateLimit <= 0 {
		c.Retrieval.RateLimit = 5
	}
	if c.Retrieval.RateBurst <= 0 {
		c.Retrieval.RateBurst = 5
	}
	if c.Retrieval.TrafficLookback <= 0 {
		c.Retrieval.TrafficLookback = 30000 * time.Second
	}
	if c.Retrieval.SystemLookback <= 0 {
		c.Retrieval.SystemLookback = 60000 * time.Second
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9108"
	}

	if c.Queue.Redis.Addr == "" {
		c.Queue.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = "fwlog:queries"
	}
	if c.Queue.Redis.BlockTimeout <= 0 {
		c.Queue.Redis.BlockTimeout = 5 * time.Second
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.ReplyTTL <= 0 {
		c.Queue.ReplyTTL = 5 * time.Minute
	}
	if c.Queue.ReplyPrefix == "" {
		c.Queue.ReplyPrefix = "fwlog:reply:"
	}
	if c.Queue.CallbackHTTP.Timeout <= 0 {
		c.Queue.CallbackHTTP.Timeout = 5 * time.Second
	}

	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
