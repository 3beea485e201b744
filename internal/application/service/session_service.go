package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/application/pos"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"go.uber.org/zap"
)

// SessionManager hands out one live cart session per encounter. Sessions are
// in-memory only; every durable write goes through the backend adapter.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*pos.Session
	backend  pos.Backend
	logger   *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(backend pos.Backend, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[uuid.UUID]*pos.Session),
		backend:  backend,
		logger:   logger,
	}
}

// OpenSession returns the live session for an encounter, loading a fresh one
// when none exists or the previous one already completed a payment.
func (m *SessionManager) OpenSession(ctx context.Context, encounterID uuid.UUID) (*pos.Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[encounterID]; ok && existing.State() != pos.StateCompleted {
		m.mu.Unlock()
		return existing, nil
	}
	session := pos.NewSession(m.backend, m.logger)
	m.sessions[encounterID] = session
	m.mu.Unlock()

	if err := session.LoadEncounter(ctx, encounterID); err != nil {
		m.mu.Lock()
		delete(m.sessions, encounterID)
		m.mu.Unlock()
		return nil, err
	}
	return session, nil
}

// GetSession returns the live session for an encounter, if any
func (m *SessionManager) GetSession(encounterID uuid.UUID) (*pos.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[encounterID]
	if !ok {
		return nil, apperror.NewNotFoundError("Session")
	}
	return session, nil
}

// CloseSession discards the live session for an encounter
func (m *SessionManager) CloseSession(encounterID uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, encounterID)
	m.mu.Unlock()
}

// backendAdapter implements pos.Backend on top of the application services
type backendAdapter struct {
	encounters *EncounterService
	payments   *PaymentService
	customers  *CustomerService
	catalog    *CatalogService
}

// NewSessionBackend wires the cart engine's backend onto the application
// services.
func NewSessionBackend(
	encounters *EncounterService,
	payments *PaymentService,
	customers *CustomerService,
	catalog *CatalogService,
) pos.Backend {
	return &backendAdapter{
		encounters: encounters,
		payments:   payments,
		customers:  customers,
		catalog:    catalog,
	}
}

func (a *backendAdapter) ReadEncounter(ctx context.Context, id uuid.UUID) (*pos.EncounterRecord, error) {
	encounter, err := a.encounters.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}

	record := &pos.EncounterRecord{
		ID:           encounter.ID,
		Name:         encounter.Name,
		Customer:     pos.Ref{ID: encounter.CustomerID, Label: encounter.Customer.Name},
		Patients:     patientRefs(encounter.Patients),
		Practitioner: resourceRef(encounter.Practitioner),
		Room:         resourceRef(encounter.Room),
		CurrencyCode: encounter.CurrencyCode,
		Closed:       encounter.State == enum.EncounterStateClosed,
	}
	return record, nil
}

func (a *backendAdapter) UpdateEncounterHeader(ctx context.Context, encounterID uuid.UUID, input pos.HeaderInput) error {
	_, err := a.encounters.UpdateEncounter(ctx, &UpdateEncounterInput{
		ID:             encounterID,
		PractitionerID: input.PractitionerID,
		RoomID:         input.RoomID,
		PatientIDs:     input.PatientIDs,
	})
	return err
}

func (a *backendAdapter) ListEncounterLines(ctx context.Context, filter pos.LineFilter) ([]pos.LineRecord, error) {
	lines, err := a.encounters.ListLines(ctx, filter.EncounterID, filter.RemainingPositive)
	if err != nil {
		return nil, err
	}

	records := make([]pos.LineRecord, 0, len(lines))
	for i := range lines {
		if len(filter.PaymentStatusIn) > 0 && !statusIn(lines[i].PaymentStatus, filter.PaymentStatusIn) {
			continue
		}
		records = append(records, lineRecord(&lines[i]))
	}
	return records, nil
}

func (a *backendAdapter) UpsertEncounterLine(ctx context.Context, encounterID uuid.UUID, input pos.UpsertLineInput) (uuid.UUID, error) {
	line, err := a.encounters.UpsertLine(ctx, &UpsertLineInput{
		EncounterID:    encounterID,
		LineID:         input.LineID,
		ProductID:      input.ProductID,
		Qty:            input.Qty,
		UnitPrice:      input.UnitPrice,
		Discount:       input.Discount,
		PractitionerID: input.PractitionerID,
		RoomID:         input.RoomID,
		PatientIDs:     input.PatientIDs,
		Source:         enum.LineSourceManual,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return line.ID, nil
}

func (a *backendAdapter) DeleteEncounterLine(ctx context.Context, lineID uuid.UUID) error {
	return a.encounters.DeleteLine(ctx, lineID)
}

func (a *backendAdapter) ProcessPayment(ctx context.Context, encounterID uuid.UUID, req pos.PaymentRequest) (*pos.PaymentResult, error) {
	output, err := a.payments.ProcessPayment(ctx, &ProcessPaymentInput{
		EncounterID:     encounterID,
		PaymentMethodID: req.PaymentMethodID,
		LineIDs:         req.LineIDs,
		PaymentAmount:   req.PaymentAmount,
		CreditUsed:      req.CreditUsed,
	})
	if err != nil {
		// Declines come back as bad requests; surface them as a failed
		// attempt so the terminal shows the message instead of an error page.
		if appErr := apperror.GetAppError(err); appErr.Code == http.StatusBadRequest {
			return &pos.PaymentResult{Success: false, Message: appErr.Message}, nil
		}
		return nil, err
	}

	return &pos.PaymentResult{
		Success:   output.Success,
		InvoiceID: output.InvoiceID,
		Message:   output.Message,
	}, nil
}

func (a *backendAdapter) GetCreditBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	return a.customers.GetCreditBalance(ctx, customerID)
}

func (a *backendAdapter) SearchProducts(ctx context.Context, query string) ([]pos.ProductRecord, error) {
	products, err := a.catalog.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}

	records := make([]pos.ProductRecord, 0, len(products))
	for i := range products {
		records = append(records, pos.ProductRecord{
			ID:        products[i].ID,
			Name:      products[i].Name,
			Code:      products[i].Code,
			ListPrice: products[i].ListPrice,
		})
	}
	return records, nil
}

func lineRecord(line *entity.EncounterLine) pos.LineRecord {
	record := pos.LineRecord{
		ID:            line.ID,
		EncounterID:   line.EncounterID,
		ProductID:     line.ProductID,
		ProductName:   line.Product.Name,
		ProductCode:   line.Product.Code,
		Qty:           line.Qty,
		UnitPrice:     line.UnitPrice,
		Discount:      line.Discount,
		PaymentStatus: line.PaymentStatus,
		PaidAmount:    line.PaidAmount,
		SubTotal:      line.SubTotal,
		Practitioner:  resourceRef(line.Practitioner),
		Room:          resourceRef(line.Room),
		Patients:      patientRefs(line.Patients),
	}
	if record.ProductName == "" {
		record.ProductName = line.Description
	}
	return record
}

func resourceRef(resource *entity.Resource) *pos.Ref {
	if resource == nil {
		return nil
	}
	return &pos.Ref{ID: resource.ID, Label: resource.Name}
}

func patientRefs(patients []entity.Patient) []pos.Ref {
	if len(patients) == 0 {
		return nil
	}
	refs := make([]pos.Ref, 0, len(patients))
	for i := range patients {
		refs = append(refs, pos.Ref{ID: patients[i].ID, Label: patients[i].Name})
	}
	return refs
}

func statusIn(status enum.PaymentStatus, set []enum.PaymentStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
