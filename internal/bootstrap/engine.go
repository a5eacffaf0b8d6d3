// Package bootstrap wires the engine from configuration. Both the HTTP server and tenancyctl
// build their services through it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/configs"
	"github.com/avatarctic/tenancy-engine/internal/application/services"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/email"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/health"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/metrics"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/redis"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/repositories"
	"github.com/avatarctic/tenancy-engine/internal/utils"
)

// Engine holds every wired service together with the connections backing them.
type Engine struct {
	Config *configs.Config
	Logger *logrus.Logger

	Database *db.Database
	Redis    *goredis.Client
	Store    ports.DocumentStore

	Validator   *validator.Validate
	Coordinator *services.TransactionCoordinator
	Audit       *services.AuditService
	RateLimiter *services.RateLimiterService
	Identity    *services.IdentityService
	Invites     *services.InviteCodeService
	Revocations *services.RevocationService
	Properties  *services.PropertyService
	Sweeper     *services.ExpirySweeperService

	HealthCheckers []ports.HealthChecker
}

// NewLogger builds the process logger from the log configuration.
func NewLogger(cfg configs.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// Connect opens only the backends the configuration asks for.
func Connect(ctx context.Context, cfg *configs.Config, logger *logrus.Logger) (*db.Database, *goredis.Client, error) {
	var (
		database    *db.Database
		redisClient *goredis.Client
		err         error
	)
	if cfg.NeedsPostgres() {
		database, err = db.NewDatabaseWithConfig(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Connected to database successfully")
	}
	if cfg.NeedsRedis() {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			if database != nil {
				_ = database.Close()
			}
			return nil, nil, err
		}
		logger.Info("Connected to Redis successfully")
	}
	return database, redisClient, nil
}

// New wires the engine on top of already opened connections. database and redisClient may be
// nil when the configuration does not need them.
func New(cfg *configs.Config, logger *logrus.Logger, database *db.Database, redisClient *goredis.Client) (*Engine, error) {
	e := &Engine{Config: cfg, Logger: logger, Database: database, Redis: redisClient}
	clock := ports.SystemClock{}
	engineMetrics := metrics.NewEngineMetrics()

	switch cfg.Store.Driver {
	case "postgres":
		if database == nil {
			return nil, errors.New("postgres store requires a database connection")
		}
		e.Store = repositories.NewPostgresDocumentStore(database, logger)
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis store requires a redis connection")
		}
		e.Store = repositories.NewRedisDocumentStore(redisClient, "tenancy:doc", logger)
	case "memory":
		logger.Warn("Using in-memory document store - state is lost on restart")
		e.Store = repositories.NewMemoryDocumentStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var rateRepo ports.RateLimitRepository
	if cfg.RateLimit.Driver == "redis" {
		if redisClient == nil {
			return nil, errors.New("redis rate limiter requires a redis connection")
		}
		rateRepo = repositories.NewRateLimitRedisRepository(redisClient)
	} else {
		rateRepo = repositories.NewRateLimitMemoryRepository()
	}

	var auditRepo ports.AuditRepository
	if database != nil {
		auditRepo = repositories.NewAuditRepository(database, logger)
	} else {
		auditRepo = repositories.NewMemoryAuditRepository()
	}

	var cache ports.Cache
	if cfg.Redis.PropertyCacheTTL > 0 {
		if redisClient != nil {
			cache = redis.NewRedisCache(redisClient, "tenancy:cache")
		} else {
			cache = redis.NewMemoryCache()
		}
	}

	var properties ports.PropertyReader = repositories.NewDocumentPropertyReader(e.Store)
	if cache != nil {
		properties = repositories.NewCachingPropertyReader(properties, cache, cfg.Redis.PropertyCacheTTL)
	}

	policies := make(map[operation.Name]services.RatePolicy, len(cfg.RateLimit.Policies))
	for op, p := range cfg.RateLimit.Policies {
		policies[op] = services.RatePolicy{Limit: p.Limit, Window: p.Window}
	}
	e.RateLimiter = services.NewRateLimiterService(rateRepo, clock, &services.RateLimiterConfig{
		Policies:  policies,
		KeyPrefix: cfg.RateLimit.KeyPrefix,
	}, logger)

	e.Audit = services.NewAuditService(auditRepo, clock, logger)
	e.Identity = services.NewIdentityService(services.IdentityConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, clock)
	e.Coordinator = services.NewTransactionCoordinator(e.Store, cache, engineMetrics, &services.TxConfig{
		MaxRetries:  cfg.Tx.MaxRetries,
		BaseBackoff: cfg.Tx.BaseBackoff,
		MaxBackoff:  cfg.Tx.MaxBackoff,
		Timeout:     cfg.Tx.Timeout,
	}, logger)

	notifier, err := email.NewInviteNotifier(&email.EmailConfig{
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		FromEmail:      cfg.Email.FromEmail,
		FromName:       cfg.Email.FromName,
		BaseURL:        cfg.Email.BaseURL,
		SendsPerSecond: cfg.Email.SendsPerSecond,
		SendBurst:      cfg.Email.SendBurst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize invite notifier: %w", err)
	}

	e.Validator = utils.NewValidator()
	deps := services.OperationDeps{
		Validator:   e.Validator,
		RateLimiter: e.RateLimiter,
		Audit:       e.Audit,
		Metrics:     engineMetrics,
		Clock:       clock,
		Logger:      logger,
	}
	e.Invites = services.NewInviteCodeService(e.Coordinator, properties, invite.NewGenerator(), notifier, deps,
		&services.InviteServiceConfig{MaxGenerationAttempts: cfg.Invite.MaxGenerationAttempts})
	e.Revocations = services.NewRevocationService(e.Coordinator, deps)
	e.Properties = services.NewPropertyService(e.Coordinator, properties, deps)
	e.Sweeper = services.NewExpirySweeperService(e.Coordinator, deps, cfg.Invite.SweepInterval)

	if database != nil {
		e.HealthCheckers = append(e.HealthCheckers, health.NewDBHealthChecker(database))
	}
	if redisClient != nil {
		e.HealthCheckers = append(e.HealthCheckers, health.NewRedisHealthChecker(redisClient))
	}
	e.HealthCheckers = append(e.HealthCheckers, health.NewStoreHealthChecker(e.Store))

	return e, nil
}

// Migrate applies pending schema migrations when the engine talks to postgres.
func (e *Engine) Migrate() error {
	if e.Database == nil {
		return nil
	}
	return e.Database.Migrate(e.Config.Database.MigrationsPath)
}

// Close stops background work and releases connections.
func (e *Engine) Close() {
	if e.Sweeper != nil {
		e.Sweeper.Stop()
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			e.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if e.Database != nil {
		if err := e.Database.Close(); err != nil {
			e.Logger.WithError(err).Warn("failed to close database")
		}
	}
}
