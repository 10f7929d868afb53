package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SourcesConfig holds the upstream Fear & Greed endpoints.
// An empty APIKey disables the keyed sources.
type SourcesConfig struct {
	Timeout     time.Duration  `mapstructure:"timeout"`
	Alternative EndpointConfig `mapstructure:"alternative"`
	CMC         EndpointConfig `mapstructure:"cmc"`
	CoinStats   EndpointConfig `mapstructure:"coinstats"`
}

type EndpointConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type CacheConfig struct {
	MemoryTTL  time.Duration `mapstructure:"memory_ttl"`  // in-process payload cache
	DurableTTL time.Duration `mapstructure:"durable_ttl"` // age after which the latest stored record is stale
}

type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	DeployURL   string        `mapstructure:"deploy_url"`
	Dev         bool          `mapstructure:"dev"`
	RefreshPath string        `mapstructure:"refresh_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// legacyEnv maps config keys to the variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"store.url":                 {"STORE_URL", "TURSO_URL"},
	"store.auth_token":          {"STORE_AUTH_TOKEN", "TURSO_TOKEN"},
	"sources.cmc.api_key":       {"SOURCES_CMC_API_KEY", "CMC_API_KEY"},
	"sources.coinstats.api_key": {"SOURCES_COINSTATS_API_KEY", "COINSTATS_API_KEY"},
	"scheduler.base_url":        {"SCHEDULER_BASE_URL", "URL"},
	"scheduler.deploy_url":      {"SCHEDULER_DEPLOY_URL", "DEPLOY_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("sources.timeout", 10*time.Second)
	v.SetDefault("sources.alternative.url", "https://api.alternative.me/fng/?limit=1")
	v.SetDefault("sources.alternative.api_key", "")
	v.SetDefault("sources.cmc.url", "https://pro-api.coinmarketcap.com/v3/fear-and-greed/latest")
	v.SetDefault("sources.cmc.api_key", "")
	v.SetDefault("sources.coinstats.url", "https://openapiv1.coinstats.app/insights/fear-and-greed")
	v.SetDefault("sources.coinstats.api_key", "")

	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.token_parameter", "")
	v.SetDefault("store.create_database", false)
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", time.Hour)

	v.SetDefault("cache.memory_ttl", 5*time.Minute)
	v.SetDefault("cache.durable_ttl", 60*time.Minute)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.base_url", "")
	v.SetDefault("scheduler.deploy_url", "")
	v.SetDefault("scheduler.dev", false)
	v.SetDefault("scheduler.refresh_path", "/api/fng/refresh")
	v.SetDefault("scheduler.timeout", 30*time.Second)

	v.SetDefault("stream.interval", 5*time.Minute)
	v.SetDefault("stream.write_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
}

// Load loads application configuration using Viper.
// It reads from config.yaml next to the binary and overrides with environment variables.
func Load() *Config {
	var dir string
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		dir = filepath.Join(pwd, "config")
	} else {
		dir = filepath.Join(filepath.Dir(ex), "../config")
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom reads config.yaml from dir. A missing file is not an error:
// every key has a default and can be set from the environment.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	setDefaults(v)

	// Support environment variables with dot notation (e.g., STORE_AUTH_TOKEN)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
