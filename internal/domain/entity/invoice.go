package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"gorm.io/gorm"
)

// Invoice records a settlement of one or more encounter lines
type Invoice struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceNumber   string             `gorm:"size:50;unique;not null" json:"invoice_number"`
	EncounterID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"encounter_id"`
	CustomerID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"customer_id"`
	PaymentMethodID uuid.UUID          `gorm:"type:uuid;not null" json:"payment_method_id"`
	CurrencyCode    string             `gorm:"size:3;not null;default:'KWD'" json:"currency_code"`
	TotalAmount     decimal.Decimal    `gorm:"type:numeric(12,3);not null" json:"total_amount"`
	CreditApplied   decimal.Decimal    `gorm:"type:numeric(12,3);not null;default:0" json:"credit_applied"`
	TenderedAmount  decimal.Decimal    `gorm:"type:numeric(12,3);not null" json:"tendered_amount"`
	Status          enum.PaymentStatus `gorm:"default:2" json:"status"`
	PaidAt          time.Time          `json:"paid_at"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	DeletedAt       gorm.DeletedAt     `gorm:"index" json:"-"`

	// Relationships
	Encounter     Encounter           `gorm:"foreignKey:EncounterID" json:"-"`
	Customer      Customer            `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	PaymentMethod PaymentMethod       `gorm:"foreignKey:PaymentMethodID" json:"payment_method,omitempty"`
	Allocations   []InvoiceAllocation `gorm:"foreignKey:InvoiceID" json:"allocations,omitempty"`
}

// BeforeCreate generates a UUID before creating a new invoice
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceAllocation records how much of an invoice was applied to a single
// encounter line.
type InvoiceAllocation struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	LineID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"line_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`

	// Relationships
	Invoice Invoice       `gorm:"foreignKey:InvoiceID" json:"-"`
	Line    EncounterLine `gorm:"foreignKey:LineID" json:"-"`
}

// BeforeCreate generates a UUID before creating a new allocation
func (a *InvoiceAllocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the InvoiceAllocation model
func (InvoiceAllocation) TableName() string {
	return "invoice_allocations"
}
