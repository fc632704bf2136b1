package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hvill/identity-service/internal/api/handler"
	"github.com/hvill/identity-service/internal/api/middleware"
	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

// Dependencies carries everything the router needs to register routes.
type Dependencies struct {
	Registration ports.RegistrationService
	Auth         ports.AuthService
	Staff        ports.StaffService
	Scheduling   ports.SchedulingClient
	Mongo        *mongo.Database
	Redis        *redis.Client
	JWTSecret    string
	Log          zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	// --- Handlers ---
	registrationHandler := handler.NewRegistrationHandler(deps.Registration)
	authHandler := handler.NewAuthHandler(deps.Auth)
	staffHandler := handler.NewStaffHandler(deps.Staff, deps.Scheduling)
	authMiddleware := middleware.Auth(deps.JWTSecret)

	// --- Registration pipeline (public) ---
	e.POST("/v1/register", registrationHandler.Begin)
	e.POST("/v1/register/otp", registrationHandler.ConfirmOtp)
	e.POST("/v1/register/:id/complete", registrationHandler.Complete)
	e.GET("/v1/register/:id/status", registrationHandler.Status)

	// --- Auth ---
	e.POST("/v1/auth/login", authHandler.Login)

	// --- Staff directory (staff tiers only) ---
	staff := e.Group("/v1/staff", authMiddleware,
		middleware.RBAC(domain.RoleReceptionist, domain.RoleNurse, domain.RoleDoctor, domain.RoleAdmin))
	staff.GET("", staffHandler.List)
	staff.GET("/statistics", staffHandler.Statistics)
	staff.GET("/:id", staffHandler.Get)
	staff.POST("", staffHandler.Create,
		middleware.RBAC(domain.RoleAdmin))
	staff.PUT("/:id", staffHandler.Update,
		middleware.RBAC(domain.RoleAdmin))
	staff.DELETE("/:id", staffHandler.Deactivate,
		middleware.RBAC(domain.RoleAdmin))

	e.GET("/v1/departments", staffHandler.Departments, authMiddleware)

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	return e
}
