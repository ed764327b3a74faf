package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Guard    GuardConfig
	Gate     GateConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

// RedisConfig enables the shared guard store. An empty URL keeps lockout and
// presence state in process memory.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	SentryDSN      string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	CookieSecure       bool
	CookieSameSite     string
	LoginRatePerMinute int
	FailureDelayBase   time.Duration
	FailureDelayJitter time.Duration
}

type GuardConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	PresenceTimeout   time.Duration
	BoardPostCooldown time.Duration
	MessageCooldown   time.Duration
	CooldownStrict    bool
	SweepInterval     time.Duration
}

type GateConfig struct {
	TrustForwardedFor     bool
	TrustedProxies        []string
	BanLookupTimeout      time.Duration
	IPBlockExemptPrefixes []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "konghome"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "boardgate"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			SentryDSN:      getEnv("SENTRY_DSN", ""),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 30*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			CookieSecure:       getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:     getEnv("COOKIE_SAMESITE", "lax"),
			LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 20),
			FailureDelayBase:   getEnvAsDuration("LOGIN_FAILURE_DELAY", 200*time.Millisecond),
			FailureDelayJitter: getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
		},
		Guard: GuardConfig{
			MaxFailedAttempts: getEnvAsInt("LOGIN_MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:   getEnvAsDuration("LOGIN_LOCKOUT_DURATION", 10*time.Minute),
			PresenceTimeout:   getEnvAsDuration("PRESENCE_TIMEOUT", 5*time.Minute),
			BoardPostCooldown: getEnvAsDuration("BOARD_POST_COOLDOWN", 10*time.Second),
			MessageCooldown:   getEnvAsDuration("MESSAGE_COOLDOWN", 10*time.Second),
			CooldownStrict:    getEnvAsBool("COOLDOWN_STRICT", false),
			SweepInterval:     getEnvAsDuration("GUARD_SWEEP_INTERVAL", 15*time.Minute),
		},
		Gate: GateConfig{
			TrustForwardedFor:     getEnvAsBool("TRUST_FORWARDED_FOR", false),
			TrustedProxies:        getEnvAsList("TRUSTED_PROXIES", nil),
			BanLookupTimeout:      getEnvAsDuration("BAN_LOOKUP_TIMEOUT", 2*time.Second),
			IPBlockExemptPrefixes: getEnvAsList("IP_BLOCK_EXEMPT_PREFIXES", []string{"/api/admin"}),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Guard.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("LOGIN_MAX_FAILED_ATTEMPTS must be at least 1 (got %d)", cfg.Guard.MaxFailedAttempts)
	}

	// Cooldowns may be zero to disable them; these may not.
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"LOGIN_LOCKOUT_DURATION", cfg.Guard.LockoutDuration},
		{"PRESENCE_TIMEOUT", cfg.Guard.PresenceTimeout},
		{"GUARD_SWEEP_INTERVAL", cfg.Guard.SweepInterval},
		{"BAN_LOOKUP_TIMEOUT", cfg.Gate.BanLookupTimeout},
	} {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be positive (got %s)", d.name, d.value)
		}
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // HS256 wants a 256-bit key
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if origins := getEnvAsList("ALLOWED_ORIGINS", nil); len(origins) > 0 {
		return origins
	}
	if env == "production" {
		return []string{}
	}

	// Development: the board frontend runs on the Vite dev server
	return []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:3000",
	}
}
