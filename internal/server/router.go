// Package server assembles the HTTP router from the application's services.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"ativosaber/internal/cache"
	_ "ativosaber/internal/docs" // swagger docs
	apperrors "ativosaber/internal/errors"
	"ativosaber/internal/handlers"
	"ativosaber/internal/metrics"
	"ativosaber/internal/middleware"
	"ativosaber/internal/rates"
	"ativosaber/internal/services"
	"ativosaber/internal/validator"
)

// Deps carries everything the router needs. Redis and Metrics are optional:
// a nil Redis disables the asset cache and a nil Metrics gets a fresh collector.
type Deps struct {
	DB            *gorm.DB
	Rates         *rates.Table
	Redis         *redis.Client
	CacheTTL      time.Duration
	Metrics       *metrics.Collector
	MetricsAPIKey string
}

// NewRouter wires services, handlers and middleware into a gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Rates == nil {
		d.Rates = rates.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector()
	}
	d.Metrics.SetIndexRates(d.Rates)
	validator.Register()

	// Services
	userService := services.NewUserService(d.DB)
	auditService := services.NewAuditService(d.DB)
	assetService := cache.NewCachingAssetService(d.Redis, d.CacheTTL,
		services.NewAssetService(d.DB, d.Rates, d.Metrics), "assets")

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	assetHandler := handlers.NewAssetHandler(assetService, auditService)
	rateHandler := handlers.NewRateHandler(d.Rates)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(d.Metrics.Middleware())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFound)
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", middleware.APIKeyMiddleware(d.MetricsAPIKey), gin.WrapH(d.Metrics.Handler()))

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.GET("/users", authHandler.ListUsers)
	protected.GET("/rates", rateHandler.ListRates)

	// Static segments are registered before /:id.
	assets := protected.Group("/assets")
	assets.POST("", assetHandler.CreateAsset)
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/portfolio", assetHandler.GetPortfolio)
	assets.GET("/search/:name", assetHandler.SearchAssets)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.PUT("/:id", assetHandler.UpdateAsset)
	assets.PATCH("/:id", assetHandler.PatchAsset)
	assets.DELETE("/:id", assetHandler.DeleteAsset)
	assets.GET("/:id/redemption", assetHandler.SimulateRedemption)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
