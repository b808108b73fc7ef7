// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"encaissement/internal/domain/auth"
	"encaissement/internal/domain/payment"
	"encaissement/internal/domain/student"
	"encaissement/internal/infrastructure/http/v1/handlers"
	"encaissement/internal/infrastructure/http/v1/middleware"
	"encaissement/internal/infrastructure/storage/postgres"
	"encaissement/pkg/logger"
)

// RouterConfig holds everything the router needs, constructed explicitly
// by the caller. No globals.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints.
	AuthService *auth.Service

	// PaymentService for payment record endpoints.
	PaymentService *payment.Service

	// StudentService for the student catalog.
	StudentService *student.Service

	// Attachments serves receipt files. May be nil.
	Attachments handlers.AttachmentStore

	// AllowedOrigins for CORS. Empty allows all (development).
	AllowedOrigins []string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	base := handlers.NewBaseHandler()

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(base, cfg.AuthService)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", middleware.Auth(cfg.JWTValidator), authHandler.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		paymentHandler := handlers.NewPaymentHandler(base, cfg.PaymentService, cfg.Attachments)
		paiements := protected.Group("/paiements")
		{
			paiements.POST("", paymentHandler.Create)
			paiements.GET("", paymentHandler.List)
			paiements.GET("/recent", paymentHandler.Recent)
			paiements.GET("/utilisateur/:userId", paymentHandler.ListByUser)
			paiements.GET("/:id", paymentHandler.Get)
			paiements.GET("/:id/piece-jointe", paymentHandler.Attachment)
			paiements.PUT("/:id", paymentHandler.Update)
			paiements.DELETE("/:id", paymentHandler.Delete)

			// Migration import carries reference numbers from a previous
			// system; restricted to admins.
			paiements.POST("/import", middleware.RequireRole(auth.RoleAdmin), paymentHandler.Import)
		}

		studentHandler := handlers.NewStudentHandler(base, cfg.StudentService)
		etudiants := protected.Group("/etudiants")
		{
			etudiants.POST("", studentHandler.Create)
			etudiants.GET("", studentHandler.List)
			etudiants.GET("/:id", studentHandler.Get)
			etudiants.PUT("/:id", studentHandler.Update)
			etudiants.DELETE("/:id", studentHandler.Delete)
		}
	}

	return router
}
