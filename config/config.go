package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Marketstore MarketstoreConfig        `yaml:"marketstore"`
	Reader      ReaderConfig             `yaml:"reader"`
	Normalizer  NormalizerConfig         `yaml:"normalizer"`
	Backends    map[string]BackendConfig `yaml:"backends"`
	Logging     LoggingConfig            `yaml:"logging"`
}

type MarketstoreConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ReaderConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type NormalizerConfig struct {
	// OptionFill is the neutral value injected for option fields the
	// source never quoted.
	OptionFill float64 `yaml:"option_fill"`
	OutputDir  string  `yaml:"output_dir"`
}

// BackendConfig describes one storage backend. Only enabled backends
// take part in discovery; skip_store marks a backend that is running
// but configured not to persist.
type BackendConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	SSLMode   string `yaml:"ssl_mode"`
	SkipStore bool   `yaml:"skip_store"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	MaxAge      int    `yaml:"max_age"`
	CloudWatch  bool   `yaml:"cloudwatch"`
	CWNamespace string `yaml:"cloudwatch_namespace"`
	CWRegion    string `yaml:"cloudwatch_region"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Reader: ReaderConfig{
			Timeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 2,
				BurstSize:         1,
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment credentials come from the
// environment instead of the checked-in file. Each backend reads
// MARKETSTORE_<NAME>_DB_* variables; the unscoped MARKETSTORE_DB_*
// form applies only when a single backend is configured, so one
// variable set can never overwrite credentials across backends.
func applyEnvOverrides(cfg *Config) {
	single := len(cfg.Backends) == 1
	for name, backend := range cfg.Backends {
		if single {
			applyBackendEnv(&backend, "MARKETSTORE_DB_")
		}
		applyBackendEnv(&backend, "MARKETSTORE_"+envKey(name)+"_DB_")
		cfg.Backends[name] = backend
	}
}

func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func applyBackendEnv(b *BackendConfig, prefix string) {
	if v := os.Getenv(prefix + "HOST"); v != "" {
		b.Host = strings.TrimSpace(v)
	}
	if v := os.Getenv(prefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			b.Port = port
		}
	}
	if v := os.Getenv(prefix + "USER"); v != "" {
		b.User = strings.TrimSpace(v)
	}
	if v := os.Getenv(prefix + "PASSWORD"); v != "" {
		b.Password = strings.TrimSpace(v)
	}
	if v := os.Getenv(prefix + "NAME"); v != "" {
		b.Name = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Marketstore.Name == "" {
		return fmt.Errorf("marketstore.name is required")
	}

	if cfg.Marketstore.Version == "" {
		return fmt.Errorf("marketstore.version is required")
	}

	if cfg.Reader.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("reader.rate_limit.requests_per_second must be greater than 0")
	}

	for name, backend := range cfg.Backends {
		if !backend.Enabled {
			continue
		}
		if backend.Host == "" {
			return fmt.Errorf("backends.%s.host is required when enabled", name)
		}
		if backend.Port <= 0 || backend.Port > 65535 {
			return fmt.Errorf("backends.%s.port '%d' is invalid", name, backend.Port)
		}
		if backend.Name == "" {
			return fmt.Errorf("backends.%s.name is required when enabled", name)
		}
	}

	return nil
}
