package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Store     StoreConfig
	Tx        TxConfig
	RateLimit RateLimitConfig
	Invite    InviteConfig
	JWT       JWTConfig
	Email     EmailConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// comma separated in CORS_ALLOWED_ORIGINS; empty allows any origin
	AllowedOrigins []string
	Environment    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
	// PropertyCacheTTL bounds how stale a cached property may be (0 disables the cache)
	PropertyCacheTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// StoreConfig selects the document store behind the transaction coordinator.
type StoreConfig struct {
	Driver string // postgres, redis or memory
}

type TxConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// RatePolicy is a fixed-window budget, written in the environment as "limit/window", e.g. "50/1h".
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Driver    string // redis or memory
	KeyPrefix string
	Policies  map[operation.Name]RatePolicy
}

type InviteConfig struct {
	DefaultTTL            time.Duration
	MaxGenerationAttempts int
	SweepInterval         time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
	// DevTokenTTL is the lifetime of tokens minted by tenancyctl
	DevTokenTTL time.Duration
}

type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	BaseURL        string
	// SendsPerSecond throttles outbound invite emails
	SendsPerSecond float64
	SendBurst      int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),
			Environment:    getEnv("ENVIRONMENT", "production"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "tenancy"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "file://migrations"),
		},
		Redis: RedisConfig{
			Host:             getEnv("REDIS_HOST", "localhost"),
			Port:             getEnv("REDIS_PORT", "6379"),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getIntEnv("REDIS_DB", 0),
			PoolSize:         getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns:     getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:      getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:      getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:     getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:      getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:      getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			PropertyCacheTTL: getDurationEnv("PROPERTY_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		},
		Tx: TxConfig{
			MaxRetries:  getIntEnv("TX_MAX_RETRIES", 8),
			BaseBackoff: getDurationEnv("TX_BASE_BACKOFF", 10*time.Millisecond),
			MaxBackoff:  getDurationEnv("TX_MAX_BACKOFF", 250*time.Millisecond),
			Timeout:     getDurationEnv("TX_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Driver:    strings.ToLower(getEnv("RATE_LIMIT_DRIVER", "redis")),
			KeyPrefix: getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:actor"),
			Policies: map[operation.Name]RatePolicy{
				operation.CreateCode:         getRateEnv("RATE_LIMIT_CREATE_CODE", RatePolicy{Limit: 50, Window: time.Hour}),
				operation.Redeem:             getRateEnv("RATE_LIMIT_REDEEM", RatePolicy{Limit: 20, Window: time.Hour}),
				operation.ValidateCode:       getRateEnv("RATE_LIMIT_VALIDATE", RatePolicy{Limit: 300, Window: time.Hour}),
				operation.Remove:             getRateEnv("RATE_LIMIT_REMOVE", RatePolicy{Limit: 50, Window: time.Hour}),
				operation.RevokeCode:         getRateEnv("RATE_LIMIT_REVOKE_CODE", RatePolicy{Limit: 50, Window: time.Hour}),
				operation.RegisterProperty:   getRateEnv("RATE_LIMIT_REGISTER_PROPERTY", RatePolicy{Limit: 20, Window: time.Hour}),
				operation.UpdateUnitCapacity: getRateEnv("RATE_LIMIT_UPDATE_UNIT", RatePolicy{Limit: 50, Window: time.Hour}),
			},
		},
		Invite: InviteConfig{
			DefaultTTL:            getDurationEnv("INVITE_DEFAULT_TTL", 7*24*time.Hour),
			MaxGenerationAttempts: getIntEnv("INVITE_MAX_GENERATION_ATTEMPTS", 5),
			SweepInterval:         getDurationEnv("INVITE_SWEEP_INTERVAL", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnvRequired("JWT_SECRET"),
			Issuer:      getEnv("JWT_ISSUER", ""),
			DevTokenTTL: getDurationEnv("JWT_DEV_TOKEN_TTL", 24*time.Hour),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@example.com"),
			FromName:       getEnv("FROM_NAME", "Tenancy"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			SendsPerSecond: getFloatEnv("EMAIL_SENDS_PER_SECOND", 5),
			SendBurst:      getIntEnv("EMAIL_SEND_BURST", 10),
		},
	}

	switch cfg.Store.Driver {
	case "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	switch cfg.RateLimit.Driver {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_DRIVER %q", cfg.RateLimit.Driver)
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	return cfg, nil
}

// NeedsPostgres reports whether any configured component talks to postgres.
// The audit log always lives in postgres unless the store runs in memory.
func (c *Config) NeedsPostgres() bool {
	return c.Store.Driver != "memory"
}

// NeedsRedis reports whether any configured component talks to redis.
// The property cache follows redis when it is connected and stays in process otherwise.
func (c *Config) NeedsRedis() bool {
	return c.Store.Driver == "redis" || c.RateLimit.Driver == "redis"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getRateEnv(key string, defaultValue RatePolicy) RatePolicy {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	p, err := ParseRatePolicy(value)
	if err != nil {
		return defaultValue
	}
	return p
}

// ParseRatePolicy parses "limit/window", e.g. "20/1h" or "300/30m".
func ParseRatePolicy(s string) (RatePolicy, error) {
	limitStr, windowStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RatePolicy{}, fmt.Errorf("rate policy %q must look like limit/window", s)
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return RatePolicy{}, fmt.Errorf("rate policy %q has an invalid limit", s)
	}
	window, err := time.ParseDuration(windowStr)
	if err != nil || window <= 0 {
		return RatePolicy{}, fmt.Errorf("rate policy %q has an invalid window", s)
	}
	return RatePolicy{Limit: limit, Window: window}, nil
}
