package database

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/vetdesk/clinicpos-api/internal/config"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Info

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Successfully connected to PostgreSQL database")
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Staff
		&entity.User{},

		// Catalog
		&entity.Category{},
		&entity.Product{},

		// Partners
		&entity.Customer{},
		&entity.Patient{},
		&entity.Resource{},

		// Billing
		&entity.Encounter{},
		&entity.EncounterLine{},
		&entity.PendingItem{},
		&entity.PaymentMethod{},
		&entity.Invoice{},
		&entity.InvoiceAllocation{},
		&entity.CreditEntry{},

		// System
		&entity.IdempotencyKey{},
		&entity.ClinicSettings{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDefaultData seeds payment methods, the discount product, clinic
// settings and an optional admin user.
func SeedDefaultData(db *gorm.DB) error {
	log.Println("Seeding default data...")

	// Payment methods. The store-credit method is what lets the terminal
	// apply customer credit to a payment.
	methods := []entity.PaymentMethod{
		{Name: "Cash", IsCredit: false, Active: true},
		{Name: "Card", IsCredit: false, Active: true},
		{Name: "Store Credit", IsCredit: true, Active: true},
	}
	for i := range methods {
		var existing entity.PaymentMethod
		if err := db.Where("name = ?", methods[i].Name).First(&existing).Error; err != nil {
			if err := db.Create(&methods[i]).Error; err != nil {
				log.Printf("Warning: failed to create payment method %s: %v", methods[i].Name, err)
			}
		}
	}

	// The discount product backs cart-wide discount lines
	var discount entity.Product
	if err := db.Where("code = ?", entity.GlobalDiscountCode).First(&discount).Error; err != nil {
		discount = entity.Product{
			Name:      "Discount",
			Code:      entity.GlobalDiscountCode,
			ListPrice: decimal.Zero,
			Sellable:  false,
		}
		if err := db.Create(&discount).Error; err != nil {
			log.Printf("Warning: failed to create discount product: %v", err)
		}
	}

	// Single clinic settings row
	var settings entity.ClinicSettings
	if err := db.First(&settings).Error; err != nil {
		settings = entity.ClinicSettings{
			ClinicName:   "Clinic",
			CurrencyCode: "KWD",
		}
		if err := db.Create(&settings).Error; err != nil {
			log.Printf("Warning: failed to create clinic settings: %v", err)
		}
	}

	// Create admin user if configured via environment variables
	adminEmail := viper.GetString("ADMIN_EMAIL")
	adminPassword := viper.GetString("ADMIN_PASSWORD")
	adminName := viper.GetString("ADMIN_NAME")

	if adminEmail != "" && adminPassword != "" {
		var existingAdmin entity.User
		if err := db.Where("email = ?", adminEmail).First(&existingAdmin).Error; err != nil {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("Warning: failed to hash admin password: %v", err)
			} else {
				if adminName == "" {
					adminName = "Admin"
				}
				firstName := adminName
				lastName := ""
				for i, c := range adminName {
					if c == ' ' {
						firstName = adminName[:i]
						lastName = adminName[i+1:]
						break
					}
				}
				adminUser := entity.User{
					FirstName: firstName,
					LastName:  lastName,
					Email:     adminEmail,
					Password:  string(hashedPassword),
				}
				if err := db.Create(&adminUser).Error; err != nil {
					log.Printf("Warning: failed to create admin user: %v", err)
				} else {
					log.Printf("Admin user created: %s", adminEmail)
				}
			}
		} else {
			log.Printf("Admin user already exists: %s", adminEmail)
		}
	}

	log.Println("Default data seeding completed")
	return nil
}
