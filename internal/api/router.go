package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/arkind/identity-api/internal/api/handler"
	"github.com/arkind/identity-api/internal/api/middleware"
	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
	"github.com/arkind/identity-api/internal/infrastructure/rate"
	"github.com/arkind/identity-api/internal/token"
)

// Deps bundles everything the router needs. main constructs them all and
// passes them down explicitly.
type Deps struct {
	Log      zerolog.Logger
	Sessions ports.SessionService
	Accounts ports.AccountRepository
	Codec    *token.Codec
	Audit    handler.AuditDispatcher
	Limiter  rate.Limiter
	Checks   []handler.DependencyCheck

	// RefreshTTL bounds the refresh cookie lifetime; it must match the TTL
	// the codec mints refresh tokens with.
	RefreshTTL time.Duration
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Sessions, d.Audit, d.RefreshTTL)
	accountHandler := handler.NewAccountHandler(d.Accounts)
	authenticate := middleware.Authenticate(d.Codec)
	throttle := middleware.Throttle(d.Limiter, d.Log)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register, throttle)
	e.POST("/auth/login", authHandler.Login, throttle)
	e.GET("/auth/refresh", authHandler.Refresh)
	e.GET("/auth/logout", authHandler.Logout, authenticate)

	// --- Account routes (bearer token required) ---
	v1 := e.Group("/v1", authenticate)
	v1.GET("/me", accountHandler.Me)
	v1.GET("/accounts/:id", accountHandler.Get,
		middleware.RequireRoles(domain.RoleAdmin, domain.RoleModerator))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Checks...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
