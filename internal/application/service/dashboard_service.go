package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
)

// DashboardService provides front-desk statistics
type DashboardService struct {
	dashboardRepo repository.DashboardRepository
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(dashboardRepo repository.DashboardRepository) *DashboardService {
	return &DashboardService{
		dashboardRepo: dashboardRepo,
	}
}

// DashboardStats represents front-desk statistics
type DashboardStats struct {
	OpenEncounters     int64             `json:"open_encounters"`
	OutstandingBalance decimal.Decimal   `json:"outstanding_balance"`
	RevenueToday       decimal.Decimal   `json:"revenue_today"`
	RevenueThisMonth   decimal.Decimal   `json:"revenue_this_month"`
	DailyRevenue       []DailyPoint      `json:"daily_revenue"`
	TopProducts        []TopProductPoint `json:"top_products"`
}

// DailyPoint represents collected revenue on a single day
type DailyPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProductPoint represents a product's billed performance
type TopProductPoint struct {
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	QtyBilled decimal.Decimal `json:"qty_billed"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// GetDashboardStats aggregates the front-desk overview
func (s *DashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	openCount, err := s.dashboardRepo.GetOpenEncounterCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.OpenEncounters = openCount

	outstanding, err := s.dashboardRepo.GetOutstandingBalance(ctx)
	if err != nil {
		return nil, err
	}
	stats.OutstandingBalance = outstanding

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	today, err := s.dashboardRepo.GetRevenueSince(ctx, startOfDay)
	if err != nil {
		return nil, err
	}
	stats.RevenueToday = today

	month, err := s.dashboardRepo.GetRevenueSince(ctx, startOfMonth)
	if err != nil {
		return nil, err
	}
	stats.RevenueThisMonth = month

	daily, err := s.dashboardRepo.GetDailyRevenue(ctx, 7)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]decimal.Decimal, len(daily))
	for _, point := range daily {
		byDay[point.Date.Format("2006-01-02")] = point.Revenue
	}

	// Fill the last 7 days so the chart has no gaps
	stats.DailyRevenue = make([]DailyPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		date := now.AddDate(0, 0, -i)
		revenue, ok := byDay[date.Format("2006-01-02")]
		if !ok {
			revenue = decimal.Zero
		}
		stats.DailyRevenue = append(stats.DailyRevenue, DailyPoint{
			Date:    date.Format("Jan 02"),
			Revenue: revenue,
		})
	}

	top, err := s.dashboardRepo.GetTopProducts(ctx, 5)
	if err != nil {
		return nil, err
	}
	stats.TopProducts = make([]TopProductPoint, 0, len(top))
	for _, product := range top {
		stats.TopProducts = append(stats.TopProducts, TopProductPoint{
			Name:      product.ProductName,
			Code:      product.ProductCode,
			QtyBilled: product.QtyBilled,
			Revenue:   product.Revenue,
		})
	}

	return stats, nil
}
