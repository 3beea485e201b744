package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vetdesk/clinicpos-api/internal/config"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/handler"
	"github.com/vetdesk/clinicpos-api/internal/presentation/http/middleware"
	"github.com/vetdesk/clinicpos-api/pkg/utils"
	"go.uber.org/zap"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Auth      *handler.AuthHandler
	Customer  *handler.CustomerHandler
	Catalog   *handler.CatalogHandler
	Encounter *handler.EncounterHandler
	Session   *handler.SessionHandler
	Invoice   *handler.InvoiceHandler
	Dashboard *handler.DashboardHandler
	Settings  *handler.SettingsHandler
	User      *handler.UserHandler
	Printer   *handler.PrinterHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	Logger          *zap.Logger
	IdempotencyRepo domainRepo.IdempotencyRepository
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no authentication required)
		registerAuthRoutes(v1, h)

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))

		rateLimiter := middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(deps.Cfg.RateLimit.Requests) / float64(deps.Cfg.RateLimit.Duration),
			BurstSize:         deps.Cfg.RateLimit.Requests,
			CleanupInterval:   5 * time.Minute,
			EntryTTL:          10 * time.Minute,
		})
		protected.Use(rateLimiter.Middleware())

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerAuthRoutes(v1 *gin.RouterGroup, h *Handlers) {
	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.Auth.Register)
		auth.POST("/refresh", h.Auth.RefreshToken)
	}
}

func registerProtectedRoutes(protected *gin.RouterGroup, h *Handlers, deps *Deps) {
	// Auth/Profile routes
	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/profile", h.Auth.GetProfile)
	protected.PUT("/profile", h.Auth.UpdateProfile)
	protected.PUT("/profile/password", h.Auth.ChangePassword)

	// Settings
	protected.GET("/settings", h.Settings.GetSettings)
	protected.PUT("/settings", h.Settings.UpdateSettings)

	// Dashboard
	protected.GET("/dashboard", h.Dashboard.GetStats)

	registerCustomerRoutes(protected, h)
	registerCatalogRoutes(protected, h)
	registerEncounterRoutes(protected, h, deps)
	registerInvoiceRoutes(protected, h)
	registerUserRoutes(protected, h)
	registerPrinterRoutes(protected, h)
}

func registerCustomerRoutes(protected *gin.RouterGroup, h *Handlers) {
	customers := protected.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.POST("", h.Customer.Create)
		customers.GET("/:id", h.Customer.Get)
		customers.PUT("/:id", h.Customer.Update)
		customers.DELETE("/:id", h.Customer.Delete)
		customers.GET("/:id/patients", h.Customer.ListPatients)
		customers.POST("/:id/patients", h.Customer.CreatePatient)
		customers.GET("/:id/credit", h.Customer.GetCreditBalance)
		customers.POST("/:id/credit", h.Customer.AddCredit)
		customers.GET("/:id/credit/entries", h.Customer.ListCreditEntries)
	}
}

func registerCatalogRoutes(protected *gin.RouterGroup, h *Handlers) {
	products := protected.Group("/products")
	{
		products.GET("", h.Catalog.ListProducts)
		products.POST("", h.Catalog.CreateProduct)
		products.GET("/search", h.Catalog.SearchProducts)
		products.GET("/barcode/:barcode", h.Catalog.GetProductByBarcode)
		products.GET("/:id", h.Catalog.GetProduct)
		products.PUT("/:id", h.Catalog.UpdateProduct)
		products.DELETE("/:id", h.Catalog.DeleteProduct)
	}

	categories := protected.Group("/categories")
	{
		categories.GET("", h.Catalog.ListCategories)
		categories.POST("", h.Catalog.CreateCategory)
		categories.PUT("/:id", h.Catalog.UpdateCategory)
		categories.DELETE("/:id", h.Catalog.DeleteCategory)
	}
}

func registerEncounterRoutes(protected *gin.RouterGroup, h *Handlers, deps *Deps) {
	encounters := protected.Group("/encounters")
	{
		encounters.GET("", h.Encounter.List)
		encounters.POST("", h.Encounter.Create)
		encounters.GET("/:id", h.Encounter.Get)
		encounters.PUT("/:id", h.Encounter.Update)
		encounters.POST("/:id/close", h.Encounter.Close)
		encounters.GET("/:id/lines", h.Encounter.ListLines)
		encounters.GET("/:id/pending-items", h.Encounter.ListPendingItems)
		encounters.POST("/:id/pending-items", h.Encounter.AddPendingItem)
		encounters.GET("/:id/invoices", h.Invoice.ListByEncounter)

		// Terminal cart session
		session := encounters.Group("/:id/session")
		{
			session.POST("", h.Session.Open)
			session.GET("", h.Session.Get)
			session.DELETE("", h.Session.Close)
			session.POST("/lines", h.Session.AddLine)
			session.PUT("/lines/:lineId", h.Session.UpdateLine)
			session.DELETE("/lines/:lineId", h.Session.RemoveLine)
			session.POST("/discount", h.Session.SetGlobalDiscount)
			session.POST("/payment-methods", h.Session.TogglePaymentMethod)
			session.PUT("/header", h.Session.UpdateHeader)
			session.GET("/totals", h.Session.Totals)
			session.POST("/sync", h.Session.Sync)
			session.POST("/save", h.Session.Save)
			// Payment uses idempotency middleware to prevent duplicate charges
			session.POST("/pay", middleware.IdempotencyRequired(middleware.IdempotencyConfig{
				Repo: deps.IdempotencyRepo,
			}), h.Session.Pay)
		}
	}

	protected.POST("/pending-items/:itemId/convert", h.Encounter.ConvertPendingItem)
	protected.GET("/resources", h.Encounter.ListResources)
}

func registerInvoiceRoutes(protected *gin.RouterGroup, h *Handlers) {
	invoices := protected.Group("/invoices")
	{
		invoices.GET("/:id", h.Invoice.Get)
	}

	protected.GET("/payment-methods", h.Invoice.ListPaymentMethods)
}

func registerUserRoutes(protected *gin.RouterGroup, h *Handlers) {
	users := protected.Group("/users")
	{
		users.GET("", h.User.List)
		users.GET("/:id", h.User.Get)
		users.DELETE("/:id", h.User.Delete)
	}
}

func registerPrinterRoutes(protected *gin.RouterGroup, h *Handlers) {
	printerGroup := protected.Group("/printer")
	{
		printerGroup.GET("/status", h.Printer.GetStatus)
		printerGroup.POST("/test", h.Printer.TestPrint)
		printerGroup.POST("/receipt", h.Printer.PrintReceipt)
	}
}
