package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	APIKeys        []string `mapstructure:"api_keys"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// StoreConfig selects the backend holding reminder jobs and appointments.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // redis | mysql | memory
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type TransportConfig struct {
	CountryCode string           `mapstructure:"country_code"`
	Providers   []ProviderConfig `mapstructure:"providers"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// ProviderConfig holds the credentials of one WhatsApp sending account.
type ProviderConfig struct {
	Name       string        `mapstructure:"name"`
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	From       string        `mapstructure:"from"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// TemplatesConfig maps reply flows to provider content template ids.
type TemplatesConfig struct {
	Ack         string `mapstructure:"ack"`
	Confirmed   string `mapstructure:"confirmed"`
	Rescheduled string `mapstructure:"rescheduled"`
}

type SchedulerConfig struct {
	LateFireIfOverdue bool          `mapstructure:"late_fire_if_overdue"`
	RecoveryFailFast  bool          `mapstructure:"recovery_fail_fast"`
	DispatchTimeout   time.Duration `mapstructure:"dispatch_timeout"`
}

type WebhookConfig struct {
	ValidateSignature bool          `mapstructure:"validate_signature"`
	PublicURL         string        `mapstructure:"public_url"`
	AuthToken         string        `mapstructure:"auth_token"`
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
}

type RateLimitConfig struct {
	RPS    int           `mapstructure:"rps"`
	Window time.Duration `mapstructure:"window"`
}

type AuditConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CLINIC_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	// a missing user file falls back to defaults; a broken one is an error
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// env override (CLINIC_HTTP_ADDR -> http.addr)
	v.SetEnvPrefix("CLINIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "redis", "mysql", "memory":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "mysql" && c.MySQL.DSN == "" {
		return fmt.Errorf("store.driver mysql requires mysql.dsn")
	}
	if c.Scheduler.DispatchTimeout <= 0 {
		return fmt.Errorf("scheduler.dispatch_timeout must be positive")
	}
	if c.Webhook.ValidateSignature && c.Webhook.AuthToken == "" {
		return fmt.Errorf("webhook.validate_signature requires webhook.auth_token")
	}
	return nil
}
