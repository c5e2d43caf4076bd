package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Agent    AgentConfig    `koanf:"agent"`
	Security SecurityConfig `koanf:"security"`
	Payments PaymentsConfig `koanf:"payments"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// AgentConfig controls the front-desk agent's external collaborators.
type AgentConfig struct {
	// TextGenURL/TextGenAPIKey configure the language-model capability.
	// When the key is empty the intent classifier runs on its
	// deterministic fallback only.
	TextGenURL    string        `koanf:"textgen_url"`
	TextGenAPIKey string        `koanf:"textgen_api_key"`
	TextGenModel  string        `koanf:"textgen_model"`
	CallbackSweep time.Duration `koanf:"callback_sweep"`
}

// PaymentsConfig points at the hosted payment page.
type PaymentsConfig struct {
	LinkBaseURL string `koanf:"link_base_url"`
}

// SecurityConfig tunes the fraud filter.
type SecurityConfig struct {
	BlockThreshold    float64       `koanf:"block_threshold"`
	FlagThreshold     float64       `koanf:"flag_threshold"`
	SuspiciousWindow  time.Duration `koanf:"suspicious_window"`
	SuspiciousLimit   int           `koanf:"suspicious_limit"`
	BlockedCallWindow time.Duration `koanf:"blocked_call_window"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Agent: AgentConfig{
			CallbackSweep: time.Minute,
		},
		Payments: PaymentsConfig{
			LinkBaseURL: "https://pay.classbridge.example/checkout",
		},
		Security: SecurityConfig{
			BlockThreshold:    0.8,
			FlagThreshold:     0.5,
			SuspiciousWindow:  30 * 24 * time.Hour,
			SuspiciousLimit:   3,
			BlockedCallWindow: 7 * 24 * time.Hour,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = "configs/config.yaml"
	}
	// Config file is optional.
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := k.Load(env.Provider("FDA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FDA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
