package router

import (
	"github.com/formhub/backend/internal/application/files"
	"github.com/formhub/backend/internal/application/identity"
	appsubmission "github.com/formhub/backend/internal/application/submission"
	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/event"
	"github.com/formhub/backend/internal/infrastructure/logger"
	"github.com/formhub/backend/internal/interfaces/http/handler"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the long-lived collaborators the HTTP layer needs.
// Everything request-scoped is built per request from the unit of work.
type Dependencies struct {
	Config      *config.Config
	DB          handler.Pinger
	Sessions    uow.SessionFactory
	Bus         *event.EventBus
	Tokens      *auth.JWTService
	Revocations auth.RevocationStore
	Store       files.Store
	// Limiter throttles public submissions and logins; nil disables it
	Limiter *middleware.RateLimiter
	Logger  *zap.Logger
}

// NewEngine builds the gin engine with global middleware and every API route
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID(log))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	})...)
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.UnitOfWorkWithConfig(middleware.UnitOfWorkConfig{
		Sessions:  deps.Sessions,
		Bus:       deps.Bus,
		Logger:    log,
		SkipPaths: []string{"/", "/health"},
	}))

	system := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, deps.DB)
	engine.GET("/", system.Root)
	engine.GET("/health", system.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(apiGroups(deps, system, log)...)
	r.Setup()

	return engine, nil
}

func apiGroups(deps Dependencies, system *handler.SystemHandler, log *zap.Logger) []RouteRegistrar {
	cfg := deps.Config

	requireAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:  deps.Tokens,
		Revocations: deps.Revocations,
		Logger:      log,
	})
	throttle := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		throttle = middleware.RateLimit(deps.Limiter)
	}

	authHandler := handler.NewAuthHandler(deps.Tokens, deps.Revocations, log)
	userHandler := handler.NewUserHandler(deps.Store, deps.Revocations, identity.UserServiceConfig{
		MaxAvatarSize: cfg.Upload.MaxAvatarSize,
		TokenLifetime: cfg.JWT.AccessTokenExpiration,
	}, log)
	formHandler := handler.NewFormHandler(log)
	submissionHandler := handler.NewSubmissionHandler(deps.Store, appsubmission.SubmitConfig{
		MaxFileSize: cfg.Upload.MaxFileSize,
	}, log)
	fileHandler := handler.NewFileHandler(deps.Store, log)

	systemRoutes := NewDomainGroup("system", "/system")
	systemRoutes.GET("/ping", system.Ping)
	systemRoutes.GET("/info", system.GetSystemInfo)

	authRoutes := NewDomainGroup("auth", "/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", throttle, authHandler.Login)
	authRoutes.Group("session", "").
		Use(requireAuth).
		GET("/me", authHandler.Me).
		POST("/change-password", authHandler.ChangePassword).
		POST("/logout", authHandler.Logout)

	userRoutes := NewDomainGroup("users", "/users").Use(requireAuth)
	userRoutes.POST("", userHandler.Create)
	userRoutes.GET("", userHandler.List)
	userRoutes.GET("/:id", userHandler.Get)
	userRoutes.PUT("/:id", userHandler.Update)
	userRoutes.DELETE("/:id", userHandler.Delete)
	userRoutes.POST("/:id/avatar", userHandler.UploadAvatar)
	userRoutes.GET("/:id/notification-settings", userHandler.GetNotificationSettings)
	userRoutes.PUT("/:id/notification-settings", userHandler.UpdateNotificationSettings)

	superAdminRoutes := NewDomainGroup("super-admin", "/super-admin").Use(requireAuth)
	superAdminRoutes.GET("/unapproved-admins", userHandler.ListUnapprovedAdmins)
	superAdminRoutes.POST("/admins/:id/approve", userHandler.ApproveAdmin)
	superAdminRoutes.POST("/admins/:id/reject", userHandler.RejectAdmin)

	adminRoutes := NewDomainGroup("admin", "/admin").Use(requireAuth)
	adminRoutes.GET("/:id/forms", formHandler.ListByAdmin)
	adminRoutes.GET("/:id/users", userHandler.ListByAdmin)
	adminRoutes.GET("/:id/submissions", submissionHandler.SearchByAdmin)

	// Respondents reach these without an account
	publicFormRoutes := NewDomainGroup("forms-public", "/forms")
	publicFormRoutes.GET("/:id", formHandler.Get)
	publicFormRoutes.POST("/:id/submit", throttle, submissionHandler.Submit)
	publicFormRoutes.GET("/:id/submissions/count", submissionHandler.Count)

	formRoutes := NewDomainGroup("forms", "/forms").Use(requireAuth)
	formRoutes.POST("", formHandler.Create)
	formRoutes.PUT("/:id", formHandler.Update)
	formRoutes.DELETE("/:id", formHandler.Delete)
	formRoutes.GET("/:id/submissions", submissionHandler.ListByForm)

	submissionRoutes := NewDomainGroup("submissions", "/submissions").Use(requireAuth)
	submissionRoutes.GET("/:id", submissionHandler.Get)
	submissionRoutes.DELETE("/:id", submissionHandler.Delete)
	submissionRoutes.GET("/:id/export", submissionHandler.Export)

	fileRoutes := NewDomainGroup("files", "/files").Use(requireAuth)
	fileRoutes.GET("/:id/view", fileHandler.View)

	return []RouteRegistrar{
		systemRoutes,
		authRoutes,
		userRoutes,
		superAdminRoutes,
		adminRoutes,
		publicFormRoutes,
		formRoutes,
		submissionRoutes,
		fileRoutes,
	}
}
