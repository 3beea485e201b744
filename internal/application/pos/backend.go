package pos

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
)

// EncounterRecord is the engine's view of an encounter header
type EncounterRecord struct {
	ID           uuid.UUID
	Name         string
	Customer     Ref
	Patients     []Ref
	Practitioner *Ref
	Room         *Ref
	CurrencyCode string
	Closed       bool
}

// LineRecord is the engine's view of a persisted encounter line
type LineRecord struct {
	ID            uuid.UUID
	EncounterID   uuid.UUID
	ProductID     uuid.UUID
	ProductName   string
	ProductCode   string
	Qty           decimal.Decimal
	UnitPrice     decimal.Decimal
	Discount      decimal.Decimal
	PaymentStatus enum.PaymentStatus
	PaidAmount    decimal.Decimal
	SubTotal      decimal.Decimal
	Practitioner  *Ref
	Room          *Ref
	Patients      []Ref
}

// ProductRecord is the engine's view of a catalog product
type ProductRecord struct {
	ID        uuid.UUID
	Name      string
	Code      string
	ListPrice decimal.Decimal
}

// PaymentMethodRecord is the engine's view of a payment method
type PaymentMethodRecord struct {
	ID       uuid.UUID
	Name     string
	IsCredit bool
}

// LineFilter narrows which persisted lines the backend returns
type LineFilter struct {
	EncounterID       uuid.UUID
	PaymentStatusIn   []enum.PaymentStatus
	RemainingPositive bool
}

// UpsertLineInput carries one line write. LineID is nil for creates and set
// for updates of an existing backend line.
type UpsertLineInput struct {
	LineID         *uuid.UUID
	ProductID      uuid.UUID
	Qty            decimal.Decimal
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	PractitionerID *uuid.UUID
	RoomID         *uuid.UUID
	PatientIDs     []uuid.UUID
}

// HeaderInput carries the encounter header fields a Save writes back. Nil
// pointers leave the stored value untouched.
type HeaderInput struct {
	PractitionerID *uuid.UUID
	RoomID         *uuid.UUID
	PatientIDs     []uuid.UUID
}

// PaymentRequest is the settle call sent once per payment attempt
type PaymentRequest struct {
	PaymentMethodID uuid.UUID
	LineIDs         []uuid.UUID
	PaymentAmount   decimal.Decimal
	CreditUsed      decimal.Decimal
}

// PaymentResult is what the backend reports for a payment attempt
type PaymentResult struct {
	Success   bool
	InvoiceID *uuid.UUID
	Message   string
}

// Backend is the remote collaborator the session engine writes through.
// Implementations own all persistence; the engine never stores anything
// itself.
type Backend interface {
	ReadEncounter(ctx context.Context, id uuid.UUID) (*EncounterRecord, error)
	UpdateEncounterHeader(ctx context.Context, encounterID uuid.UUID, input HeaderInput) error
	ListEncounterLines(ctx context.Context, filter LineFilter) ([]LineRecord, error)
	UpsertEncounterLine(ctx context.Context, encounterID uuid.UUID, input UpsertLineInput) (uuid.UUID, error)
	DeleteEncounterLine(ctx context.Context, lineID uuid.UUID) error
	ProcessPayment(ctx context.Context, encounterID uuid.UUID, req PaymentRequest) (*PaymentResult, error)
	GetCreditBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	SearchProducts(ctx context.Context, query string) ([]ProductRecord, error)
}
