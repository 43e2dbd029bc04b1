package main

import (
	"fmt"
	"os"

	"ativosaber/internal/cache"
	"ativosaber/internal/config"
	"ativosaber/internal/database"
	"ativosaber/internal/logger"
	"ativosaber/internal/metrics"
	"ativosaber/internal/server"
)

// @title           AtivoSaber API
// @version         1.0
// @description     AtivoSaber tracks fixed-income assets and projects their expected yield and early-redemption value.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Redis is optional; without it assets are read straight from the database.
	rdb, err := cache.NewRedisClient(appConfig)
	if err != nil {
		log.Warnf("asset cache disabled: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	table := appConfig.RateTable()
	for _, code := range table.Codes() {
		rate, _ := table.Lookup(code)
		log.Infow("index rate", "index_code", code, "rate", rate.String())
	}

	router := server.NewRouter(server.Deps{
		DB:            dbManager.DB(),
		Rates:         table,
		Redis:         rdb,
		CacheTTL:      appConfig.CacheTTL,
		Metrics:       metrics.NewCollector(),
		MetricsAPIKey: appConfig.MetricsAPIKey,
	})

	log.Infof("Starting AtivoSaber server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
