package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"gorm.io/gorm"
)

// MoneyScale is the number of decimal places every monetary amount is
// rounded to before it is stored or compared.
const MoneyScale = 3

// Encounter represents a visit during which products and services are
// charged to a customer. Lines accumulate on the encounter and get settled
// through one or more invoices.
type Encounter struct {
	ID             uuid.UUID           `gorm:"type:uuid;primary_key" json:"id"`
	Name           string              `gorm:"size:100;unique;not null" json:"name"`
	CustomerID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"customer_id"`
	PractitionerID *uuid.UUID          `gorm:"type:uuid;index" json:"practitioner_id,omitempty"`
	RoomID         *uuid.UUID          `gorm:"type:uuid;index" json:"room_id,omitempty"`
	CurrencyCode   string              `gorm:"size:3;not null;default:'KWD'" json:"currency_code"`
	State          enum.EncounterState `gorm:"default:0;index" json:"state"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	DeletedAt      gorm.DeletedAt      `gorm:"index" json:"-"`

	// Relationships
	Customer     Customer        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Practitioner *Resource       `gorm:"foreignKey:PractitionerID" json:"practitioner,omitempty"`
	Room         *Resource       `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Patients     []Patient       `gorm:"many2many:encounter_patients" json:"patients,omitempty"`
	Lines        []EncounterLine `gorm:"foreignKey:EncounterID" json:"lines,omitempty"`
}

// BeforeCreate generates a UUID before creating a new encounter
func (e *Encounter) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Encounter model
func (Encounter) TableName() string {
	return "encounters"
}

// EncounterLine is a single charge on an encounter. Discount is a percentage
// between 0 and 100 applied to the unit price.
type EncounterLine struct {
	ID             uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	EncounterID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"encounter_id"`
	ProductID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"product_id"`
	Description    string             `gorm:"size:255;not null" json:"description"`
	Qty            decimal.Decimal    `gorm:"type:numeric(12,3);not null" json:"qty"`
	UnitPrice      decimal.Decimal    `gorm:"type:numeric(12,3);not null" json:"unit_price"`
	Discount       decimal.Decimal    `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	SubTotal       decimal.Decimal    `gorm:"type:numeric(12,3);not null" json:"sub_total"`
	PaidAmount     decimal.Decimal    `gorm:"type:numeric(12,3);not null;default:0" json:"paid_amount"`
	PaymentStatus  enum.PaymentStatus `gorm:"default:0;index" json:"payment_status"`
	Source         enum.LineSource    `gorm:"default:0" json:"source"`
	PractitionerID *uuid.UUID         `gorm:"type:uuid;index" json:"practitioner_id,omitempty"`
	RoomID         *uuid.UUID         `gorm:"type:uuid;index" json:"room_id,omitempty"`
	InvoiceID      *uuid.UUID         `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"-"`

	// Relationships
	Encounter    Encounter `gorm:"foreignKey:EncounterID" json:"-"`
	Product      Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Practitioner *Resource `gorm:"foreignKey:PractitionerID" json:"practitioner,omitempty"`
	Room         *Resource `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Patients     []Patient `gorm:"many2many:encounter_line_patients" json:"patients,omitempty"`
}

// BeforeCreate generates a UUID before creating a new encounter line
func (l *EncounterLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the EncounterLine model
func (EncounterLine) TableName() string {
	return "encounter_lines"
}

// ComputeSubTotal recomputes the line subtotal from price, quantity and the
// line discount percentage, rounded to the monetary scale.
func (l *EncounterLine) ComputeSubTotal() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	factor := hundred.Sub(l.Discount).Div(hundred)
	return l.UnitPrice.Mul(l.Qty).Mul(factor).Round(MoneyScale)
}

// RemainingAmount returns the unpaid portion of the line, never negative.
func (l *EncounterLine) RemainingAmount() decimal.Decimal {
	remaining := l.SubTotal.Sub(l.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RefreshPaymentStatus derives the payment status from paid amount versus
// subtotal. Refunded and cancelled lines keep their status.
func (l *EncounterLine) RefreshPaymentStatus() {
	if l.PaymentStatus == enum.PaymentStatusRefunded || l.PaymentStatus == enum.PaymentStatusCancelled {
		return
	}
	switch {
	case l.PaidAmount.GreaterThanOrEqual(l.SubTotal) && l.SubTotal.IsPositive():
		l.PaymentStatus = enum.PaymentStatusPaid
	case l.PaidAmount.IsPositive():
		l.PaymentStatus = enum.PaymentStatusPartial
	default:
		l.PaymentStatus = enum.PaymentStatusPending
	}
}
