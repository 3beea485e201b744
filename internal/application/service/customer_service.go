package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/cache"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
	"go.uber.org/zap"
)

const creditCacheTTL = 5 * time.Minute

// CustomerService handles customers, their patients and the store-credit
// ledger.
type CustomerService struct {
	customerRepo repository.CustomerRepository
	patientRepo  repository.PatientRepository
	creditRepo   repository.CreditRepository
	creditCache  cache.CreditCache
	logger       *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(
	customerRepo repository.CustomerRepository,
	patientRepo repository.PatientRepository,
	creditRepo repository.CreditRepository,
	creditCache cache.CreditCache,
	logger *zap.Logger,
) *CustomerService {
	if creditCache == nil {
		creditCache = cache.NoopCache{}
	}
	return &CustomerService{
		customerRepo: customerRepo,
		patientRepo:  patientRepo,
		creditRepo:   creditRepo,
		creditCache:  creditCache,
		logger:       logger,
	}
}

// CreateCustomerInput represents the create customer input
type CreateCustomerInput struct {
	Name    string
	Email   *string
	Phone   *string
	Address *string
}

// CreateCustomer creates a new customer
func (s *CustomerService) CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*entity.Customer, error) {
	if input.Email != nil && *input.Email != "" {
		existing, err := s.customerRepo.GetByEmail(ctx, *input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.NewConflictError("Customer with this email already exists")
		}
	}

	customer := &entity.Customer{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetCustomer retrieves a customer with patients preloaded
func (s *CustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	customer, err := s.customerRepo.GetWithPatients(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}
	return customer, nil
}

// ListCustomers lists customers with pagination and search
func (s *CustomerService) ListCustomers(ctx context.Context, params *pagination.PaginationParams, search string) (*pagination.PaginatedResult[entity.Customer], error) {
	customers, total, err := s.customerRepo.List(ctx, params, search)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Page, params.PerPage, total)
	return pagination.NewPaginatedResult(customers, pag), nil
}

// UpdateCustomerInput represents the update customer input
type UpdateCustomerInput struct {
	ID      uuid.UUID
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// UpdateCustomer updates a customer
func (s *CustomerService) UpdateCustomer(ctx context.Context, input *UpdateCustomerInput) (*entity.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}

	if input.Name != nil {
		customer.Name = *input.Name
	}
	if input.Email != nil {
		customer.Email = input.Email
	}
	if input.Phone != nil {
		customer.Phone = input.Phone
	}
	if input.Address != nil {
		customer.Address = input.Address
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// DeleteCustomer removes a customer
func (s *CustomerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if customer == nil {
		return apperror.NewNotFoundError("Customer")
	}
	return s.customerRepo.Delete(ctx, id)
}

// CreatePatientInput represents the create patient input
type CreatePatientInput struct {
	OwnerID   uuid.UUID
	Name      string
	Species   *string
	Breed     *string
	BirthDate *time.Time
	Notes     *string
}

// CreatePatient registers a patient under a customer
func (s *CustomerService) CreatePatient(ctx context.Context, input *CreatePatientInput) (*entity.Patient, error) {
	owner, err := s.customerRepo.GetByID(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}

	patient := &entity.Patient{
		OwnerID:   input.OwnerID,
		Name:      input.Name,
		Species:   input.Species,
		Breed:     input.Breed,
		BirthDate: input.BirthDate,
		Notes:     input.Notes,
	}

	if err := s.patientRepo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// GetPatient retrieves a patient by ID
func (s *CustomerService) GetPatient(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, apperror.NewNotFoundError("Patient")
	}
	return patient, nil
}

// ListPatients lists a customer's patients
func (s *CustomerService) ListPatients(ctx context.Context, ownerID uuid.UUID) ([]entity.Patient, error) {
	return s.patientRepo.ListByOwner(ctx, ownerID)
}

// GetCreditBalance returns the customer's available store credit, served
// through the credit cache.
func (s *CustomerService) GetCreditBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	if balance, hit, err := s.creditCache.GetBalance(ctx, customerID); err == nil && hit {
		return balance, nil
	} else if err != nil {
		s.logger.Warn("credit cache read failed", zap.Error(err))
	}

	balance, err := s.creditRepo.Balance(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.creditCache.SetBalance(ctx, customerID, balance, creditCacheTTL); err != nil {
		s.logger.Warn("credit cache write failed", zap.Error(err))
	}
	return balance, nil
}

// AddCredit tops up a customer's store credit
func (s *CustomerService) AddCredit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reason string) (*entity.CreditEntry, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewBadRequestError("Credit amount must be positive")
	}

	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}

	entry := &entity.CreditEntry{
		CustomerID: customerID,
		Type:       enum.CreditEntryTypeCredit,
		Amount:     amount.Round(entity.MoneyScale),
		Reason:     reason,
	}

	if err := s.creditRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.creditCache.InvalidateBalance(ctx, customerID); err != nil {
		s.logger.Warn("credit cache invalidation failed", zap.Error(err))
	}
	return entry, nil
}

// ListCreditEntries returns a customer's credit ledger, newest first
func (s *CustomerService) ListCreditEntries(ctx context.Context, customerID uuid.UUID) ([]entity.CreditEntry, error) {
	return s.creditRepo.ListByCustomer(ctx, customerID)
}
