package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	internalsettings "github.com/igifu/campus-meals/internal/settings"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath           = "CONFIG_PATH"
	EnvDBConnection         = "DB_CONNECTION"
	EnvJWTSecret            = "JWT_SECRET"
	EnvJWTExpiry            = "JWT_EXPIRY"
	EnvPort                 = "PORT"
	EnvDefaultAdminPass     = "DEFAULT_ADMIN_PASSWORD"
	EnvRateLimit            = "RATE_LIMIT"
	EnvRateLimitRedisAddr   = "RATE_LIMIT_REDIS_ADDR"
	EnvRateLimitRedisPass   = "RATE_LIMIT_REDIS_PASSWORD"
	EnvRateLimitRedisDB     = "RATE_LIMIT_REDIS_DB"
	EnvRateLimitRedisPrefix = "RATE_LIMIT_REDIS_PREFIX"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// readConfig unmarshals the config file into out. A missing file is not an error.
func readConfig(configPath string, out any) error {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, out); errUnmarshal != nil {
		return fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return nil
}

// LoadDatabaseDSN reads the database DSN from the environment or YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 7 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// LoadServerConfig loads listener settings, falling back to defaultPort.
func LoadServerConfig(configPath string, defaultPort int) (ServerConfig, error) {
	var cfg ServerConfig
	if errRead := readConfig(configPath, &cfg); errRead != nil {
		return ServerConfig{}, errRead
	}
	if portRaw := strings.TrimSpace(os.Getenv(EnvPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil {
			cfg.Port = port
		}
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.Port <= 0 {
		cfg.Port = internalsettings.DefaultPort
	}
	if cfg.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	return cfg, nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig holds mutation rate limit settings.
type RateLimitConfig struct {
	Limit int `yaml:"limit"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// LoadRateLimitConfig loads rate limit settings. Setting a Redis address via
// the environment also enables the Redis backend.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limiting.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}
	cfg := fileConfig{}
	cfg.RateLimit.Limit = internalsettings.DefaultRateLimit
	if errRead := readConfig(configPath, &cfg); errRead != nil {
		return RateLimitConfig{}, errRead
	}
	result := cfg.RateLimit

	if limitRaw := strings.TrimSpace(os.Getenv(EnvRateLimit)); limitRaw != "" {
		if limit, errParse := strconv.Atoi(limitRaw); errParse == nil && limit >= 0 {
			result.Limit = limit
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRateLimitRedisAddr)); addr != "" {
		result.Redis.Addr = addr
		result.Redis.Enabled = true
	}
	if password := os.Getenv(EnvRateLimitRedisPass); password != "" {
		result.Redis.Password = password
	}
	if dbRaw := strings.TrimSpace(os.Getenv(EnvRateLimitRedisDB)); dbRaw != "" {
		if redisDB, errParse := strconv.Atoi(dbRaw); errParse == nil {
			result.Redis.DB = redisDB
		}
	}
	if prefix := strings.TrimSpace(os.Getenv(EnvRateLimitRedisPrefix)); prefix != "" {
		result.Redis.Prefix = prefix
	}

	result.Redis.Addr = strings.TrimSpace(result.Redis.Addr)
	result.Redis.Prefix = strings.TrimSpace(result.Redis.Prefix)
	if result.Redis.Prefix == "" {
		result.Redis.Prefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if result.Redis.DB < 0 {
		result.Redis.DB = 0
	}
	if result.Limit < 0 {
		result.Limit = 0
	}
	return result, nil
}

// AdminSeedConfig describes the admin account created on first start.
type AdminSeedConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// LoadAdminSeedConfig loads the default admin account settings.
func LoadAdminSeedConfig(configPath string) (AdminSeedConfig, error) {
	// fileConfig maps the YAML fields needed for the admin seed.
	type fileConfig struct {
		DefaultAdmin AdminSeedConfig `yaml:"default-admin"`
	}
	var cfg fileConfig
	if errRead := readConfig(configPath, &cfg); errRead != nil {
		return AdminSeedConfig{}, errRead
	}
	result := cfg.DefaultAdmin
	if password := os.Getenv(EnvDefaultAdminPass); password != "" {
		result.Password = password
	}
	result.Username = strings.TrimSpace(result.Username)
	if result.Username == "" {
		result.Username = internalsettings.DefaultAdminUsername
	}
	result.Email = strings.TrimSpace(result.Email)
	if result.Email == "" {
		result.Email = internalsettings.DefaultAdminEmail
	}
	return result, nil
}
