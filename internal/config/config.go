// Package config loads service settings from an optional YAML file and the environment
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreMemory = "memory"
	StoreBadger = "badger"

	EstimatorRandom = "random"
	EstimatorNone   = "none"

	// MajorsKeyword selects entity.MajorCurrencies as the broadcast list
	MajorsKeyword = "majors"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"4000"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url" env:"EXCHANGE_RATE_API_URL" env-default:"https://api.exchangerate-api.com/v4/latest"`
	Timeout    time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" env-default:"10s"`
	MaxRetries uint64        `yaml:"max_retries" env:"UPSTREAM_MAX_RETRIES" env-default:"0"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
	Store           string        `yaml:"store" env:"CACHE_STORE" env-default:"memory"`
	ChangeEstimator string        `yaml:"change_estimator" env:"CHANGE_ESTIMATOR" env-default:"random"`
}

type BroadcastConfig struct {
	Interval         time.Duration `yaml:"interval" env:"BROADCAST_INTERVAL" env-default:"30s"`
	Currencies       []string      `yaml:"currencies" env:"BROADCAST_CURRENCIES" env-default:"majors"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"BROADCAST_SUBSCRIBER_BUFFER" env-default:"8"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	TopicPrefix string   `yaml:"topic_prefix" env:"KAFKA_TOPIC_PREFIX" env-default:"currency-rates"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"INFO"`
}

// Load reads the YAML file at path when given, then applies environment variables and defaults
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("EXCHANGE_RATE_API_URL must not be empty"))
	}

	for name, d := range map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":   c.Server.ShutdownTimeout,
		"UPSTREAM_TIMEOUT":   c.Upstream.Timeout,
		"CACHE_TTL":          c.Cache.TTL,
		"BROADCAST_INTERVAL": c.Broadcast.Interval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	switch c.Cache.Store {
	case StoreMemory, StoreBadger:
	default:
		errs = append(errs, fmt.Errorf("CACHE_STORE must be %q or %q, got %q", StoreMemory, StoreBadger, c.Cache.Store))
	}

	switch c.Cache.ChangeEstimator {
	case EstimatorRandom, EstimatorNone:
	default:
		errs = append(errs, fmt.Errorf("CHANGE_ESTIMATOR must be %q or %q, got %q", EstimatorRandom, EstimatorNone, c.Cache.ChangeEstimator))
	}

	if len(c.BroadcastBases()) == 0 {
		errs = append(errs, errors.New("BROADCAST_CURRENCIES must name at least one currency"))
	}
	if c.Broadcast.SubscriberBuffer <= 0 {
		errs = append(errs, fmt.Errorf("BROADCAST_SUBSCRIBER_BUFFER must be positive, got %d", c.Broadcast.SubscriberBuffer))
	}

	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// BroadcastBases resolves the broadcast list, expanding the majors keyword
func (c *Config) BroadcastBases() []string {
	var bases []string
	for _, code := range c.Broadcast.Currencies {
		code = strings.TrimSpace(code)
		switch {
		case code == "":
		case strings.EqualFold(code, MajorsKeyword):
			bases = append(bases, entity.MajorCurrencies...)
		default:
			bases = append(bases, strings.ToUpper(code))
		}
	}
	return bases
}

// KafkaEnabled reports whether snapshots should be mirrored to Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
