package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"gorm.io/gorm"
)

// CreditEntry is one movement on a customer store-credit ledger. The balance
// is the sum of credits minus debits, floored at zero.
type CreditEntry struct {
	ID         uuid.UUID            `gorm:"type:uuid;primary_key" json:"id"`
	CustomerID uuid.UUID            `gorm:"type:uuid;not null;index" json:"customer_id"`
	Type       enum.CreditEntryType `gorm:"default:0" json:"type"`
	Amount     decimal.Decimal      `gorm:"type:numeric(12,3);not null" json:"amount"`
	Reason     string               `gorm:"size:255" json:"reason"`
	InvoiceID  *uuid.UUID           `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`

	// Relationships
	Customer Customer `gorm:"foreignKey:CustomerID" json:"-"`
	Invoice  *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new credit entry
func (e *CreditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the CreditEntry model
func (CreditEntry) TableName() string {
	return "credit_entries"
}
