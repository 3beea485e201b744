package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/cache"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"go.uber.org/zap"
)

// PaymentService settles encounter lines into invoices, applying store
// credit before the tendered amount.
type PaymentService struct {
	encounterRepo repository.EncounterRepository
	lineRepo      repository.EncounterLineRepository
	invoiceRepo   repository.InvoiceRepository
	creditRepo    repository.CreditRepository
	methodRepo    repository.PaymentMethodRepository
	creditCache   cache.CreditCache
	logger        *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	encounterRepo repository.EncounterRepository,
	lineRepo repository.EncounterLineRepository,
	invoiceRepo repository.InvoiceRepository,
	creditRepo repository.CreditRepository,
	methodRepo repository.PaymentMethodRepository,
	creditCache cache.CreditCache,
	logger *zap.Logger,
) *PaymentService {
	if creditCache == nil {
		creditCache = cache.NoopCache{}
	}
	return &PaymentService{
		encounterRepo: encounterRepo,
		lineRepo:      lineRepo,
		invoiceRepo:   invoiceRepo,
		creditRepo:    creditRepo,
		methodRepo:    methodRepo,
		creditCache:   creditCache,
		logger:        logger,
	}
}

// ProcessPaymentInput represents one payment attempt against an encounter
type ProcessPaymentInput struct {
	EncounterID     uuid.UUID
	PaymentMethodID uuid.UUID
	LineIDs         []uuid.UUID
	PaymentAmount   decimal.Decimal
	CreditUsed      decimal.Decimal
}

// ProcessPaymentOutput reports the outcome of a payment attempt
type ProcessPaymentOutput struct {
	Success   bool       `json:"success"`
	InvoiceID *uuid.UUID `json:"invoice_id,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// ProcessPayment validates the attempt, debits store credit, creates the
// invoice and allocates the paid amount across the given lines oldest
// first. Later failures undo the earlier writes so a declined payment
// leaves no partial invoice behind.
func (s *PaymentService) ProcessPayment(ctx context.Context, input *ProcessPaymentInput) (*ProcessPaymentOutput, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, input.EncounterID)
	if err != nil {
		return nil, err
	}
	if encounter == nil {
		return nil, apperror.NewNotFoundError("Encounter")
	}
	if encounter.State == enum.EncounterStateClosed {
		return nil, apperror.NewBadRequestError("Encounter is closed")
	}

	method, err := s.methodRepo.GetByID(ctx, input.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method == nil || !method.Active {
		return nil, apperror.NewNotFoundError("Payment method")
	}

	lines, err := s.payableLines(ctx, encounter.ID, input.LineIDs)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperror.NewBadRequestError("No unpaid lines to settle")
	}

	totalDue := decimal.Zero
	for i := range lines {
		totalDue = totalDue.Add(lines[i].RemainingAmount())
	}

	creditUsed := input.CreditUsed.Round(entity.MoneyScale)
	if creditUsed.IsNegative() {
		return nil, apperror.NewBadRequestError("Credit amount cannot be negative")
	}
	if creditUsed.IsPositive() {
		balance, err := s.creditRepo.Balance(ctx, encounter.CustomerID)
		if err != nil {
			return nil, err
		}
		if creditUsed.GreaterThan(balance) {
			return nil, apperror.NewBadRequestError("Requested credit exceeds the available balance")
		}
	}

	tendered := input.PaymentAmount.Round(entity.MoneyScale)
	if tendered.IsNegative() {
		return nil, apperror.NewBadRequestError("Payment amount cannot be negative")
	}

	totalPaid := creditUsed.Add(tendered)
	if !totalPaid.IsPositive() {
		return nil, apperror.NewBadRequestError("Nothing to pay")
	}
	if totalPaid.GreaterThan(totalDue) {
		totalPaid = totalDue
	}

	invoice := &entity.Invoice{
		InvoiceNumber:   fmt.Sprintf("INV-%s", uuid.New().String()[:8]),
		EncounterID:     encounter.ID,
		CustomerID:      encounter.CustomerID,
		PaymentMethodID: method.ID,
		CurrencyCode:    encounter.CurrencyCode,
		TotalAmount:     totalPaid,
		CreditApplied:   creditUsed,
		TenderedAmount:  tendered,
		Status:          enum.PaymentStatusPaid,
		PaidAt:          time.Now(),
	}

	// Allocate oldest first until the paid amount runs out
	remainingToApply := totalPaid
	for i := range lines {
		if !remainingToApply.IsPositive() {
			break
		}
		applied := decimal.Min(lines[i].RemainingAmount(), remainingToApply)
		if !applied.IsPositive() {
			continue
		}
		invoice.Allocations = append(invoice.Allocations, entity.InvoiceAllocation{
			LineID: lines[i].ID,
			Amount: applied,
		})
		lines[i].PaidAmount = lines[i].PaidAmount.Add(applied)
		lines[i].RefreshPaymentStatus()
		remainingToApply = remainingToApply.Sub(applied)
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	if creditUsed.IsPositive() {
		entry := &entity.CreditEntry{
			CustomerID: encounter.CustomerID,
			Type:       enum.CreditEntryTypeDebit,
			Amount:     creditUsed,
			Reason:     "Applied to invoice " + invoice.InvoiceNumber,
			InvoiceID:  &invoice.ID,
		}
		if err := s.creditRepo.Create(ctx, entry); err != nil {
			_ = s.invoiceRepo.Delete(ctx, invoice.ID)
			return nil, err
		}
	}

	if err := s.lineRepo.UpdateBatch(ctx, lines); err != nil {
		// Undo the ledger debit and the invoice so nothing is half settled
		_ = s.creditRepo.DeleteByInvoice(ctx, invoice.ID)
		_ = s.invoiceRepo.Delete(ctx, invoice.ID)
		return nil, err
	}

	if err := s.creditCache.InvalidateBalance(ctx, encounter.CustomerID); err != nil {
		s.logger.Warn("credit cache invalidation failed", zap.Error(err))
	}

	s.closeIfSettled(ctx, encounter)

	s.logger.Info("payment processed",
		zap.String("invoice", invoice.InvoiceNumber),
		zap.String("encounter_id", encounter.ID.String()),
		zap.String("total", totalPaid.String()),
		zap.String("credit", creditUsed.String()))

	return &ProcessPaymentOutput{
		Success:   true,
		InvoiceID: &invoice.ID,
	}, nil
}

// GetInvoice retrieves an invoice with allocations
func (s *PaymentService) GetInvoice(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NewNotFoundError("Invoice")
	}
	return invoice, nil
}

// ListInvoicesByEncounter lists the invoices raised against an encounter
func (s *PaymentService) ListInvoicesByEncounter(ctx context.Context, encounterID uuid.UUID) ([]entity.Invoice, error) {
	return s.invoiceRepo.ListByEncounter(ctx, encounterID)
}

// ListPaymentMethods lists the configured payment methods
func (s *PaymentService) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]entity.PaymentMethod, error) {
	return s.methodRepo.List(ctx, activeOnly)
}

// payableLines loads the requested lines and keeps the ones that belong to
// the encounter and still owe something, preserving creation order.
func (s *PaymentService) payableLines(ctx context.Context, encounterID uuid.UUID, lineIDs []uuid.UUID) ([]entity.EncounterLine, error) {
	if len(lineIDs) == 0 {
		return s.lineRepo.ListByEncounter(ctx, encounterID, &repository.LineFilterParams{PayableOnly: true})
	}

	lines, err := s.lineRepo.GetByIDs(ctx, lineIDs)
	if err != nil {
		return nil, err
	}

	payable := make([]entity.EncounterLine, 0, len(lines))
	for _, line := range lines {
		if line.EncounterID != encounterID {
			continue
		}
		if !line.PaymentStatus.Payable() || !line.RemainingAmount().IsPositive() {
			continue
		}
		payable = append(payable, line)
	}
	for i := 1; i < len(payable); i++ {
		for j := i; j > 0 && payable[j].CreatedAt.Before(payable[j-1].CreatedAt); j-- {
			payable[j], payable[j-1] = payable[j-1], payable[j]
		}
	}
	return payable, nil
}

// closeIfSettled closes the encounter once nothing remains payable.
// Best effort: a failure here leaves the encounter open, which is safe.
func (s *PaymentService) closeIfSettled(ctx context.Context, encounter *entity.Encounter) {
	open, err := s.lineRepo.ListByEncounter(ctx, encounter.ID, &repository.LineFilterParams{PayableOnly: true})
	if err != nil {
		s.logger.Warn("settlement check failed", zap.Error(err))
		return
	}
	if len(open) > 0 {
		return
	}

	encounter.State = enum.EncounterStateClosed
	if err := s.encounterRepo.Update(ctx, encounter); err != nil {
		s.logger.Warn("auto-close failed", zap.String("encounter_id", encounter.ID.String()), zap.Error(err))
	}
}
