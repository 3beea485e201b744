package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vetdesk/clinicpos-api/internal/application/service"
	"github.com/vetdesk/clinicpos-api/internal/config"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/cache"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/database"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/repository"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/handler"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/routes"
	"github.com/vetdesk/clinicpos-api/pkg/printer"
	"github.com/vetdesk/clinicpos-api/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Seed default data
	if err := database.SeedDefaultData(db); err != nil {
		logger.Warn("Failed to seed default data", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.ExpiryHours,
		cfg.JWT.RefreshExpiryHours,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	encounterRepo := repository.NewEncounterRepository(db)
	lineRepo := repository.NewEncounterLineRepository(db)
	pendingRepo := repository.NewPendingItemRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	// Redis backs the catalog and credit caches; fall back to no caching
	// when it is disabled or unreachable
	var catalogCache cache.CatalogCache = cache.NoopCache{}
	var creditCache cache.CreditCache = cache.NoopCache{}
	if cfg.Redis.Enabled {
		redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Warn("Redis unreachable, caching disabled", zap.Error(err))
		} else {
			catalogCache = redisCache
			creditCache = redisCache
		}
		cancel()
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager)
	userService := service.NewUserService(userRepo)
	customerService := service.NewCustomerService(customerRepo, patientRepo, creditRepo, creditCache, logger)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, catalogCache, logger)
	encounterService := service.NewEncounterService(encounterRepo, lineRepo, productRepo, customerRepo, patientRepo, resourceRepo, pendingRepo, settingsRepo, logger)
	paymentService := service.NewPaymentService(encounterRepo, lineRepo, invoiceRepo, creditRepo, methodRepo, creditCache, logger)
	dashboardService := service.NewDashboardService(dashboardRepo)
	settingsService := service.NewSettingsService(settingsRepo)

	// The cart engine talks to the services through a backend adapter
	sessionBackend := service.NewSessionBackend(encounterService, paymentService, customerService, catalogService)
	sessionManager := service.NewSessionManager(sessionBackend, logger)

	// Initialize thermal printer
	thermalPrinter, err := printer.NewPrinterFromConfig(
		cfg.Printer.Type,
		cfg.Printer.USBPath,
		cfg.Printer.Address,
	)
	if err != nil {
		logger.Warn("Failed to initialize printer", zap.Error(err))
		thermalPrinter = printer.NewNullPrinter()
	}
	printerService := service.NewPrinterService(thermalPrinter, invoiceRepo, settingsRepo, cfg.Printer.Type, logger)

	// Initialize handlers
	handlers := &routes.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Customer:  handler.NewCustomerHandler(customerService),
		Catalog:   handler.NewCatalogHandler(catalogService),
		Encounter: handler.NewEncounterHandler(encounterService),
		Session:   handler.NewSessionHandler(sessionManager, catalogService, paymentService, encounterService, customerService),
		Invoice:   handler.NewInvoiceHandler(paymentService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		Settings:  handler.NewSettingsHandler(settingsService),
		User:      handler.NewUserHandler(userService),
		Printer:   handler.NewPrinterHandler(printerService),
	}

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		Logger:          logger,
		IdempotencyRepo: idempotencyRepo,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	logger.Info("Starting server",
		zap.String("service", cfg.App.Name),
		zap.String("port", port),
		zap.String("env", cfg.App.Env),
	)

	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
