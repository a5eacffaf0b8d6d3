package httpserver

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	customMiddleware "github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver/middleware"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/metrics"
	"github.com/avatarctic/tenancy-engine/internal/utils"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	Environment    string
	// DefaultInviteTTL applies when a create-code request omits ttl_seconds.
	DefaultInviteTTL time.Duration
}

type ServerDeps struct {
	InviteService     ports.InviteCodeService
	RevocationService ports.RevocationService
	PropertyService   ports.PropertyService
	AuditService      ports.AuditService
	IdentityService   ports.IdentityService
	HealthCheckers    []ports.HealthChecker
	Validator         *validator.Validate
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	inviteSvc      ports.InviteCodeService
	revocationSvc  ports.RevocationService
	propertySvc    ports.PropertyService
	auditSvc       ports.AuditService
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	v := deps.Validator
	if v == nil {
		v = utils.NewValidator()
	}
	e.Validator = &requestValidator{validate: v}

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		inviteSvc:      deps.InviteService,
		revocationSvc:  deps.RevocationService,
		propertySvc:    deps.PropertyService,
		auditSvc:       deps.AuditService,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.IdentityService,
			logger,
			metrics.RequestsTotal(),
			metrics.RequestDuration(),
		),
	}
	e.HTTPErrorHandler = server.errorHandler

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.validate.Struct(i)
}
