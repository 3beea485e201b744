package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
)

// CreditRepository defines the interface for customer store-credit ledgers
type CreditRepository interface {
	Create(ctx context.Context, entry *entity.CreditEntry) error
	// Balance returns credits minus debits for a customer, floored at zero
	Balance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]entity.CreditEntry, error)
	// DeleteByInvoice removes ledger entries tied to an invoice (payment compensation)
	DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error
}
