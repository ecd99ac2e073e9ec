package settings

// Defaults applied when the config file and environment leave a value unset.
const (
	// DefaultSiteName is the service name reported by health checks.
	DefaultSiteName = "Campus Meals"
	// DefaultPort is the fallback HTTP port.
	DefaultPort = 8318
	// DefaultRateLimit is the fallback per-user mutation limit per second (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "meals:rl"
	// DefaultAdminUsername is the account seeded on first start.
	DefaultAdminUsername = "admin"
	// DefaultAdminEmail is the email of the seeded admin account.
	DefaultAdminEmail = "admin@campus.local"
	// DefaultTopupMethod labels top-ups that do not name a payment method.
	DefaultTopupMethod = "cash"
)
