// Package config loads the service configuration from an optional YAML
// file and applies environment overrides on top, so deployments can run
// from a file, from the environment alone, or a mix of both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omnilaze/universal/pkg/logger"
)

// Config is the root configuration for the API server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SMS      SMSConfig      `yaml:"sms"`
	App      AppConfig      `yaml:"app"`
	Logging  logger.Config  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the
// in-memory stores instead.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// RedisConfig holds Redis settings. An empty Addr disables Redis; when
// set, verification codes are kept in Redis with native TTL expiry.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMSConfig holds settings for the Spug SMS gateway used to deliver
// verification codes. An empty URL disables delivery.
type SMSConfig struct {
	SpugURL    string `yaml:"spug_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// AppConfig holds business-level settings.
type AppConfig struct {
	// DevelopmentMode makes verification codes deterministic and skips
	// SMS delivery so the flow can be exercised without a gateway.
	DevelopmentMode bool `yaml:"development_mode"`
	// DevVerificationCode is the fixed code issued in development mode.
	DevVerificationCode string `yaml:"dev_verification_code"`
	// SeedInviteCodes are redeemable codes created at startup.
	SeedInviteCodes []string `yaml:"seed_invite_codes"`
	// SeedInviteMaxUses bounds each seeded code.
	SeedInviteMaxUses int `yaml:"seed_invite_max_uses"`
	// UserInviteMaxUses bounds the personal code minted for each new user.
	UserInviteMaxUses int `yaml:"user_invite_max_uses"`
	// FreeDrinkQuota is the initial size of the referral reward pool.
	FreeDrinkQuota int `yaml:"free_drink_quota"`
	// CORSOrigins lists allowed cross-origin request origins.
	CORSOrigins []string `yaml:"cors_origins"`
	// RateLimitPerSecond and RateLimitBurst shape per-client request
	// limits; zero disables rate limiting.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
		},
		Database: DatabaseConfig{
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		SMS: SMSConfig{
			TimeoutSec: 10,
		},
		App: AppConfig{
			DevVerificationCode: "100000",
			SeedInviteCodes:     []string{"1234", "WELCOME", "LANDE", "OMNILAZE", "ADVX2025"},
			SeedInviteMaxUses:   1000,
			UserInviteMaxUses:   2,
			FreeDrinkQuota:      100,
			CORSOrigins:         []string{"*"},
			RateLimitPerSecond:  20,
			RateLimitBurst:      40,
		},
		Logging: logger.Config{Level: "info", Format: "text", Output: "stdout"},
	}
}

// Load reads the config file named by CONFIG_PATH (default config.yaml
// if present), then applies environment overrides. A missing file is
// not an error; the defaults plus environment are used.
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv("CONFIG_PATH")
	optional := false
	if path == "" {
		path = "config.yaml"
		optional = true
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
		// fall through to defaults
	default:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.App.FreeDrinkQuota < 0 {
		return fmt.Errorf("config: free drink quota must not be negative")
	}
	if c.App.UserInviteMaxUses <= 0 {
		return fmt.Errorf("config: user invite max uses must be positive")
	}
	if c.App.DevelopmentMode && c.App.DevVerificationCode == "" {
		return fmt.Errorf("config: development mode requires a dev verification code")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.SMS.SpugURL, "SPUG_URL")
	setBool(&cfg.App.DevelopmentMode, "DEVELOPMENT_MODE")
	setString(&cfg.App.DevVerificationCode, "DEV_VERIFICATION_CODE")
	setInt(&cfg.App.FreeDrinkQuota, "FREE_DRINK_QUOTA")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.App.CORSOrigins = origins
	}
	if v := os.Getenv("SEED_INVITE_CODES"); v != "" {
		parts := strings.Split(v, ",")
		codes := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				codes = append(codes, p)
			}
		}
		cfg.App.SeedInviteCodes = codes
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
