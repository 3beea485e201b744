package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"gorm.io/gorm"
)

type dashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository creates a new dashboard repository
func NewDashboardRepository(db *gorm.DB) domainRepo.DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) GetOpenEncounterCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Encounter{}).
		Where("state = ?", enum.EncounterStateOpen).
		Count(&count).Error
	return count, err
}

func (r *dashboardRepository) GetOutstandingBalance(ctx context.Context) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&entity.EncounterLine{}).
		Select("COALESCE(SUM(sub_total - paid_amount), 0) AS total").
		Where("payment_status IN ?", []enum.PaymentStatus{enum.PaymentStatusPending, enum.PaymentStatusPartial}).
		Where("sub_total - paid_amount > 0").
		Scan(&result).Error
	return result.Total, err
}

func (r *dashboardRepository) GetRevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&entity.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("status = ?", enum.PaymentStatusPaid).
		Where("paid_at >= ?", since).
		Scan(&result).Error
	return result.Total, err
}

func (r *dashboardRepository) GetDailyRevenue(ctx context.Context, days int) ([]domainRepo.DailyRevenueResult, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	var results []domainRepo.DailyRevenueResult
	err := r.db.WithContext(ctx).Model(&entity.Invoice{}).
		Select("DATE(paid_at) AS date, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("status = ?", enum.PaymentStatusPaid).
		Where("paid_at >= ?", since).
		Group("DATE(paid_at)").
		Order("date ASC").
		Scan(&results).Error
	return results, err
}

func (r *dashboardRepository) GetTopProducts(ctx context.Context, limit int) ([]domainRepo.TopProductResult, error) {
	if limit <= 0 {
		limit = 5
	}

	var results []domainRepo.TopProductResult
	err := r.db.WithContext(ctx).
		Table("invoice_allocations").
		Select(`products.id AS product_id,
			products.name AS product_name,
			products.code AS product_code,
			COALESCE(SUM(encounter_lines.qty), 0) AS qty_billed,
			COALESCE(SUM(invoice_allocations.amount), 0) AS revenue`).
		Joins("JOIN encounter_lines ON encounter_lines.id = invoice_allocations.line_id").
		Joins("JOIN products ON products.id = encounter_lines.product_id").
		Where("products.code <> ?", entity.GlobalDiscountCode).
		Group("products.id, products.name, products.code").
		Order("revenue DESC").
		Limit(limit).
		Scan(&results).Error
	return results, err
}
