// Package config loads process configuration from an optional .env file, an
// optional billing config file and BILLING_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mmynk/meterbill/internal/models"
)

// Fallback drivers.
const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig
	Host     HostConfig
	Database DatabaseConfig
	Fallback FallbackConfig
	Backup   BackupConfig
	Defaults DefaultsConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // debug, info, warn, error
}

// HostConfig describes the host process. ListenAddr is used by the host,
// URL by clients; an empty URL means no host is expected.
type HostConfig struct {
	ListenAddr   string
	URL          string
	Secret       string
	TokenTTL     time.Duration
	ProbeTimeout time.Duration
}

// DatabaseConfig holds the structured store settings.
type DatabaseConfig struct {
	Path string
}

// FallbackConfig selects the key-value backend used without a host.
type FallbackConfig struct {
	Driver        string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// BackupConfig controls scheduled snapshot backups on the host.
type BackupConfig struct {
	Enabled  bool
	Schedule string
	Dir      string
	Retain   int
}

// DefaultsConfig seeds the settings record of an empty store.
type DefaultsConfig struct {
	KwRate      decimal.Decimal
	CompanyName string
	SystemName  string
}

// Settings returns the configured defaults as a settings record.
func (d DefaultsConfig) Settings() models.Settings {
	return models.Settings{
		KwRate:      d.KwRate,
		CompanyName: d.CompanyName,
		SystemName:  d.SystemName,
	}
}

// Load reads configuration, searching for billing.yaml (or .toml, .json)
// in . and ./config.
//
// Priority (highest to lowest):
// 1. Environment variables with BILLING_ prefix (e.g., BILLING_HOST_URL)
// 2. The config file
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("billing")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rate, err := decimal.NewFromString(v.GetString("defaults.kw_rate"))
	if err != nil {
		return nil, fmt.Errorf("defaults.kw_rate: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Host: HostConfig{
			ListenAddr:   v.GetString("host.listen_addr"),
			URL:          v.GetString("host.url"),
			Secret:       v.GetString("host.secret"),
			TokenTTL:     v.GetDuration("host.token_ttl"),
			ProbeTimeout: v.GetDuration("host.probe_timeout"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Fallback: FallbackConfig{
			Driver:        strings.ToLower(v.GetString("fallback.driver")),
			Dir:           v.GetString("fallback.dir"),
			RedisAddr:     v.GetString("fallback.redis_addr"),
			RedisPassword: v.GetString("fallback.redis_password"),
			RedisDB:       v.GetInt("fallback.redis_db"),
			KeyPrefix:     v.GetString("fallback.key_prefix"),
		},
		Backup: BackupConfig{
			Enabled:  v.GetBool("backup.enabled"),
			Schedule: v.GetString("backup.schedule"),
			Dir:      v.GetString("backup.dir"),
			Retain:   v.GetInt("backup.retain"),
		},
		Defaults: DefaultsConfig{
			KwRate:      rate,
			CompanyName: v.GetString("defaults.company_name"),
			SystemName:  v.GetString("defaults.system_name"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := models.DefaultSettings()

	v.SetDefault("log.level", "info")
	v.SetDefault("host.listen_addr", ":8787")
	v.SetDefault("host.url", "")
	v.SetDefault("host.secret", "")
	v.SetDefault("host.token_ttl", 5*time.Minute)
	v.SetDefault("host.probe_timeout", 2*time.Second)
	v.SetDefault("database.path", "./data/billing.db")
	v.SetDefault("fallback.driver", DriverFile)
	v.SetDefault("fallback.dir", "./data/kv")
	v.SetDefault("fallback.redis_addr", "")
	v.SetDefault("fallback.redis_password", "")
	v.SetDefault("fallback.redis_db", 0)
	v.SetDefault("fallback.key_prefix", "meterbill:")
	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.schedule", "@daily")
	v.SetDefault("backup.dir", "./data/backups")
	v.SetDefault("backup.retain", 7)
	v.SetDefault("defaults.kw_rate", defaults.KwRate.String())
	v.SetDefault("defaults.company_name", defaults.CompanyName)
	v.SetDefault("defaults.system_name", defaults.SystemName)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Fallback.Driver {
	case DriverFile, DriverMemory:
	case DriverRedis:
		if c.Fallback.RedisAddr == "" {
			return fmt.Errorf("fallback.redis_addr is required when fallback.driver is redis")
		}
	default:
		return fmt.Errorf("fallback.driver must be one of file, redis, memory; got %q", c.Fallback.Driver)
	}

	if !c.Defaults.KwRate.IsPositive() {
		return fmt.Errorf("defaults.kw_rate must be positive, got %s", c.Defaults.KwRate)
	}
	if c.Defaults.CompanyName == "" || c.Defaults.SystemName == "" {
		return fmt.Errorf("defaults.company_name and defaults.system_name are required")
	}
	if c.Backup.Retain < 1 {
		return fmt.Errorf("backup.retain must be at least 1, got %d", c.Backup.Retain)
	}
	if c.Host.TokenTTL <= 0 {
		return fmt.Errorf("host.token_ttl must be positive")
	}

	return nil
}
