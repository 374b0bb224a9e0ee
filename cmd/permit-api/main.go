package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hcsd/permit-clearance-api/api/swagger"
	"github.com/hcsd/permit-clearance-api/internal/authz"
	"github.com/hcsd/permit-clearance-api/internal/handler"
	"github.com/hcsd/permit-clearance-api/internal/middleware"
	"github.com/hcsd/permit-clearance-api/internal/repository"
	"github.com/hcsd/permit-clearance-api/internal/service"
	"github.com/hcsd/permit-clearance-api/pkg/cache"
	"github.com/hcsd/permit-clearance-api/pkg/config"
	"github.com/hcsd/permit-clearance-api/pkg/database"
	"github.com/hcsd/permit-clearance-api/pkg/logger"
	corsmiddleware "github.com/hcsd/permit-clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hcsd/permit-clearance-api/pkg/middleware/requestid"
	"github.com/hcsd/permit-clearance-api/pkg/storage"
)

// @title Permit Clearance API
// @version 1.0.0
// @description Role-gated pest control, pesticide transport and waste disposal permit workflows
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays up without Redis; list views just skip the cache.
		logr.Sugar().Warnw("redis unavailable, list caching disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Storage.DocumentsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	permitRepo := repository.NewPermitRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	engineerRepo := repository.NewEngineerRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	changeLogRepo := repository.NewChangeLogRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	gate := authz.New()
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "permit-clearance-api",
		Audience:           []string{"permit-clearance-clients"},
	})
	permitService := service.NewPermitService(service.PermitServiceDeps{
		Permits:   permitRepo,
		Companies: companyRepo,
		Engineers: engineerRepo,
		Reviews:   reviewRepo,
		Audit:     changeLogRepo,
		Files:     files,
		Cache:     cacheRepo,
		Metrics:   metricsService,
		Gate:      gate,
		Logger:    logr,
		ListTTL:   cfg.Permits.ListCacheTTL,
	})
	companyService := service.NewCompanyService(companyRepo, engineerRepo, changeLogRepo, files, gate, logr)
	engineerService := service.NewEngineerService(engineerRepo, changeLogRepo, files, gate, logr)

	authHandler := handler.NewAuthHandler(authService)
	permitHandler := handler.NewPermitHandler(permitService, signer, files, cfg.Storage.MaxFileSize)
	companyHandler := handler.NewCompanyHandler(companyService, cfg.Storage.MaxFileSize)
	engineerHandler := handler.NewEngineerHandler(engineerService, cfg.Storage.MaxFileSize)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	// Signed downloads carry their own authorization in the token.
	r.GET("/files/:token", permitHandler.ServeFile)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	permits := authed.Group("/permits")
	permits.POST("", middleware.RequireCapability(gate, authz.CapDataEntry), permitHandler.Create)
	permits.GET("", permitHandler.List)
	permits.GET("/:id", permitHandler.Get)
	permits.POST("/:id/actions", permitHandler.Action)
	permits.DELETE("/:id", middleware.RequireCapability(gate, authz.CapAdmin), permitHandler.Delete)
	permits.GET("/:id/print", permitHandler.Print)
	permits.GET("/:id/documents/:docID/url", permitHandler.DocumentURL)

	authed.GET("/exports/permits", middleware.RequireCapability(gate, authz.CapAdmin), permitHandler.Export)

	companies := authed.Group("/companies")
	companies.POST("", middleware.RequireCapability(gate, authz.CapDataEntry), companyHandler.Create)
	companies.GET("", companyHandler.List)
	companies.GET("/:id", companyHandler.Get)
	companies.PUT("/:id", middleware.RequireCapability(gate, authz.CapAdmin), companyHandler.Update)
	companies.POST("/:id/extension-requests", middleware.RequireCapability(gate, authz.CapDataEntry), companyHandler.RequestExtension)

	engineers := authed.Group("/engineers")
	engineers.POST("", middleware.RequireCapability(gate, authz.CapDataEntry), engineerHandler.Create)
	engineers.GET("", engineerHandler.List)
	engineers.GET("/:id", engineerHandler.Get)
	engineers.POST("/:id/certificates", middleware.RequireCapability(gate, authz.CapDataEntry), engineerHandler.UploadCert)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
