package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"gorm.io/gorm"
)

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new credit ledger repository
func NewCreditRepository(db *gorm.DB) domainRepo.CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) Create(ctx context.Context, entry *entity.CreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *creditRepository) Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Balance decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&entity.CreditEntry{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0) AS balance", enum.CreditEntryTypeCredit).
		Where("customer_id = ?", customerID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	if result.Balance.IsNegative() {
		return decimal.Zero, nil
	}
	return result.Balance, nil
}

func (r *creditRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]entity.CreditEntry, error) {
	var entries []entity.CreditEntry
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *creditRepository) DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&entity.CreditEntry{}).Error
}
