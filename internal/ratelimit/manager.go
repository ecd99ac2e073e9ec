package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisBreakerDuration is how long Redis is skipped after a failure.
const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisTarget struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager enforces limits on Redis when configured and reachable, and on an
// in-process limiter otherwise.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memory         *MemoryLimiter
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redis        *RedisLimiter
	target       redisTarget
	breakerUntil time.Time
}

// NewManager constructs a Manager. A nil provider disables limiting.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = StaticSettings(SettingsConfig{})
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memory:         NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// Settings returns the current settings snapshot.
func (m *Manager) Settings() SettingsConfig {
	if m == nil {
		return SettingsConfig{}
	}
	return m.provider()
}

// Allow checks whether the request should be allowed using the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()
	if cfg.RedisEnabled {
		if result, ok := m.allowRedis(ctx, key, limit, now, cfg); ok {
			return result, nil
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		return nil
	}
	errClose := m.redis.Close()
	m.redis = nil
	return errClose
}

func (m *Manager) allowRedis(ctx context.Context, key string, limit int, now time.Time, cfg SettingsConfig) (Result, bool) {
	if m.breakerOpen(now) {
		return Result{}, false
	}
	limiter, errConnect := m.connect(ctx, cfg)
	if errConnect != nil {
		m.trip(errConnect, now)
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		m.trip(errAllow, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) trip(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

// connect returns a limiter for the configured Redis target, reconnecting
// when the target changed.
func (m *Manager) connect(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	next := redisTarget{
		addr:     strings.TrimSpace(cfg.RedisAddr),
		password: cfg.RedisPassword,
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if next.addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	if next.db < 0 {
		next.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis != nil && m.target == next {
		return m.redis, nil
	}
	if m.redis != nil {
		_ = m.redis.Close()
		m.redis = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     next.addr,
		Password: next.password,
		DB:       next.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redis = NewRedisLimiter(client, next.prefix)
	m.target = next
	return m.redis, nil
}
