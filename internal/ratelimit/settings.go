package ratelimit

import (
	"strings"

	"github.com/igifu/campus-meals/internal/config"
	internalsettings "github.com/igifu/campus-meals/internal/settings"
)

// SettingsConfig captures the effective rate limit settings.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig converts file/environment settings into a SettingsConfig.
func SettingsFromConfig(cfg config.RateLimitConfig) SettingsConfig {
	out := SettingsConfig{
		Limit:         cfg.Limit,
		RedisEnabled:  cfg.Redis.Enabled,
		RedisAddr:     strings.TrimSpace(cfg.Redis.Addr),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   strings.TrimSpace(cfg.Redis.Prefix),
	}
	if out.RedisPrefix == "" {
		out.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	if out.Limit < 0 {
		out.Limit = 0
	}
	return out
}

// StaticSettings returns a provider that always yields cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}
