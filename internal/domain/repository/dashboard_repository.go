package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopProductResult represents a product's billed performance
type TopProductResult struct {
	ProductID   uuid.UUID
	ProductName string
	ProductCode string
	QtyBilled   decimal.Decimal
	Revenue     decimal.Decimal
}

// DailyRevenueResult represents collected revenue for a single day
type DailyRevenueResult struct {
	Date    time.Time
	Revenue decimal.Decimal
}

// DashboardRepository defines interface for aggregation queries over
// encounters and invoices
type DashboardRepository interface {
	// GetOpenEncounterCount returns the number of encounters still open
	GetOpenEncounterCount(ctx context.Context) (int64, error)

	// GetOutstandingBalance returns the total unpaid amount across open lines
	GetOutstandingBalance(ctx context.Context) (decimal.Decimal, error)

	// GetRevenueSince returns invoice revenue collected since the given time
	GetRevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error)

	// GetDailyRevenue returns collected revenue per day for the last N days
	GetDailyRevenue(ctx context.Context, days int) ([]DailyRevenueResult, error)

	// GetTopProducts returns top billed products by revenue
	GetTopProducts(ctx context.Context, limit int) ([]TopProductResult, error)
}
