package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
	"go.uber.org/zap"
)

// EncounterService handles encounter headers, their lines and the queue of
// pending billable items.
type EncounterService struct {
	encounterRepo repository.EncounterRepository
	lineRepo      repository.EncounterLineRepository
	productRepo   repository.ProductRepository
	customerRepo  repository.CustomerRepository
	patientRepo   repository.PatientRepository
	resourceRepo  repository.ResourceRepository
	pendingRepo   repository.PendingItemRepository
	settingsRepo  repository.SettingsRepository
	logger        *zap.Logger
}

// NewEncounterService creates a new encounter service
func NewEncounterService(
	encounterRepo repository.EncounterRepository,
	lineRepo repository.EncounterLineRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	patientRepo repository.PatientRepository,
	resourceRepo repository.ResourceRepository,
	pendingRepo repository.PendingItemRepository,
	settingsRepo repository.SettingsRepository,
	logger *zap.Logger,
) *EncounterService {
	return &EncounterService{
		encounterRepo: encounterRepo,
		lineRepo:      lineRepo,
		productRepo:   productRepo,
		customerRepo:  customerRepo,
		patientRepo:   patientRepo,
		resourceRepo:  resourceRepo,
		pendingRepo:   pendingRepo,
		settingsRepo:  settingsRepo,
		logger:        logger,
	}
}

// CreateEncounterInput represents the create encounter input
type CreateEncounterInput struct {
	CustomerID     uuid.UUID
	PatientIDs     []uuid.UUID
	PractitionerID *uuid.UUID
	RoomID         *uuid.UUID
	CurrencyCode   string
}

// CreateEncounter opens a new billing encounter for a customer
func (s *EncounterService) CreateEncounter(ctx context.Context, input *CreateEncounterInput) (*entity.Encounter, error) {
	customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}

	patients, err := s.resolvePatients(ctx, input.CustomerID, input.PatientIDs)
	if err != nil {
		return nil, err
	}

	if err := s.validateResources(ctx, input.PractitionerID, input.RoomID); err != nil {
		return nil, err
	}

	currency := input.CurrencyCode
	if currency == "" {
		if settings, err := s.settingsRepo.Get(ctx); err == nil && settings != nil {
			currency = settings.CurrencyCode
		} else {
			currency = "KWD"
		}
	}

	encounter := &entity.Encounter{
		Name:           fmt.Sprintf("ENC-%s", uuid.New().String()[:8]),
		CustomerID:     input.CustomerID,
		PractitionerID: input.PractitionerID,
		RoomID:         input.RoomID,
		CurrencyCode:   currency,
		State:          enum.EncounterStateOpen,
	}

	if err := s.encounterRepo.Create(ctx, encounter); err != nil {
		return nil, err
	}

	if len(patients) > 0 {
		if err := s.encounterRepo.SetPatients(ctx, encounter.ID, patients); err != nil {
			// The header exists without its patients; remove it so a retry
			// starts clean.
			_ = s.encounterRepo.Delete(ctx, encounter.ID)
			return nil, err
		}
	}

	return s.encounterRepo.GetWithDetails(ctx, encounter.ID)
}

// GetEncounter retrieves an encounter with all details preloaded
func (s *EncounterService) GetEncounter(ctx context.Context, id uuid.UUID) (*entity.Encounter, error) {
	encounter, err := s.encounterRepo.GetWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if encounter == nil {
		return nil, apperror.NewNotFoundError("Encounter")
	}
	return encounter, nil
}

// ListEncounters lists encounters with filtering
func (s *EncounterService) ListEncounters(ctx context.Context, params *repository.EncounterFilterParams) (*pagination.PaginatedResult[entity.Encounter], error) {
	encounters, total, err := s.encounterRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(encounters, pag), nil
}

// UpdateEncounterInput represents the update encounter input
type UpdateEncounterInput struct {
	ID             uuid.UUID
	PractitionerID *uuid.UUID
	RoomID         *uuid.UUID
	PatientIDs     []uuid.UUID
}

// UpdateEncounter edits the header of an open encounter
func (s *EncounterService) UpdateEncounter(ctx context.Context, input *UpdateEncounterInput) (*entity.Encounter, error) {
	encounter, err := s.requireOpenEncounter(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if err := s.validateResources(ctx, input.PractitionerID, input.RoomID); err != nil {
		return nil, err
	}

	if input.PractitionerID != nil {
		encounter.PractitionerID = input.PractitionerID
	}
	if input.RoomID != nil {
		encounter.RoomID = input.RoomID
	}

	if err := s.encounterRepo.Update(ctx, encounter); err != nil {
		return nil, err
	}

	if input.PatientIDs != nil {
		patients, err := s.resolvePatients(ctx, encounter.CustomerID, input.PatientIDs)
		if err != nil {
			return nil, err
		}
		if err := s.encounterRepo.SetPatients(ctx, encounter.ID, patients); err != nil {
			return nil, err
		}
	}

	return s.encounterRepo.GetWithDetails(ctx, encounter.ID)
}

// CloseEncounter marks an encounter closed. Closed encounters accept no
// further line writes or payments.
func (s *EncounterService) CloseEncounter(ctx context.Context, id uuid.UUID) error {
	encounter, err := s.requireOpenEncounter(ctx, id)
	if err != nil {
		return err
	}

	encounter.State = enum.EncounterStateClosed
	return s.encounterRepo.Update(ctx, encounter)
}

// ListLines returns an encounter's lines, optionally only the payable ones
func (s *EncounterService) ListLines(ctx context.Context, encounterID uuid.UUID, payableOnly bool) ([]entity.EncounterLine, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if encounter == nil {
		return nil, apperror.NewNotFoundError("Encounter")
	}

	var filter *repository.LineFilterParams
	if payableOnly {
		filter = &repository.LineFilterParams{PayableOnly: true}
	}
	return s.lineRepo.ListByEncounter(ctx, encounterID, filter)
}

// UpsertLineInput represents one line write from the terminal
type UpsertLineInput struct {
	EncounterID    uuid.UUID
	LineID         *uuid.UUID
	ProductID      uuid.UUID
	Qty            decimal.Decimal
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	PractitionerID *uuid.UUID
	RoomID         *uuid.UUID
	PatientIDs     []uuid.UUID
	Source         enum.LineSource
}

// UpsertLine creates a line or updates an existing one. Paid lines are
// immutable.
func (s *EncounterService) UpsertLine(ctx context.Context, input *UpsertLineInput) (*entity.EncounterLine, error) {
	encounter, err := s.requireOpenEncounter(ctx, input.EncounterID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}

	if input.Qty.IsZero() {
		input.Qty = decimal.NewFromInt(1)
	}

	var line *entity.EncounterLine
	if input.LineID != nil {
		line, err = s.lineRepo.GetByID(ctx, *input.LineID)
		if err != nil {
			return nil, err
		}
		if line == nil || line.EncounterID != encounter.ID {
			return nil, apperror.NewNotFoundError("Encounter line")
		}
		if line.PaymentStatus == enum.PaymentStatusPaid {
			return nil, apperror.NewBadRequestError("A fully paid line cannot be modified")
		}
		line.ProductID = input.ProductID
		line.Description = product.Name
		line.Qty = input.Qty
		line.UnitPrice = input.UnitPrice
		line.Discount = input.Discount
		line.PractitionerID = input.PractitionerID
		line.RoomID = input.RoomID
	} else {
		line = &entity.EncounterLine{
			EncounterID:    encounter.ID,
			ProductID:      input.ProductID,
			Description:    product.Name,
			Qty:            input.Qty,
			UnitPrice:      input.UnitPrice,
			Discount:       input.Discount,
			PractitionerID: input.PractitionerID,
			RoomID:         input.RoomID,
			PaymentStatus:  enum.PaymentStatusPending,
			Source:         input.Source,
		}
	}

	line.SubTotal = line.ComputeSubTotal()
	line.RefreshPaymentStatus()

	if input.LineID != nil {
		err = s.lineRepo.Update(ctx, line)
	} else {
		err = s.lineRepo.Create(ctx, line)
	}
	if err != nil {
		return nil, err
	}

	if input.PatientIDs != nil {
		patients, err := s.resolvePatients(ctx, encounter.CustomerID, input.PatientIDs)
		if err != nil {
			return nil, err
		}
		if err := s.lineRepo.SetPatients(ctx, line.ID, patients); err != nil {
			return nil, err
		}
	}

	return s.lineRepo.GetByID(ctx, line.ID)
}

// DeleteLine removes an unpaid encounter line
func (s *EncounterService) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return err
	}
	if line == nil {
		return apperror.NewNotFoundError("Encounter line")
	}
	if line.PaymentStatus == enum.PaymentStatusPaid || line.PaidAmount.IsPositive() {
		return apperror.NewBadRequestError("A line with payments against it cannot be deleted")
	}
	return s.lineRepo.Delete(ctx, lineID)
}

// AddPendingItemInput represents a billable item queued from elsewhere in
// the clinic.
type AddPendingItemInput struct {
	EncounterID uuid.UUID
	ProductID   uuid.UUID
	PatientID   *uuid.UUID
	Qty         decimal.Decimal
	Note        *string
}

// AddPendingItem queues a billable item for later cart addition
func (s *EncounterService) AddPendingItem(ctx context.Context, input *AddPendingItemInput) (*entity.PendingItem, error) {
	if _, err := s.requireOpenEncounter(ctx, input.EncounterID); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}

	qty := input.Qty
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}

	item := &entity.PendingItem{
		EncounterID: input.EncounterID,
		ProductID:   input.ProductID,
		PatientID:   input.PatientID,
		Qty:         qty,
		Note:        input.Note,
	}

	if err := s.pendingRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListPendingItems returns the unconsumed queue for an encounter
func (s *EncounterService) ListPendingItems(ctx context.Context, encounterID uuid.UUID) ([]entity.PendingItem, error) {
	return s.pendingRepo.ListOpenByEncounter(ctx, encounterID)
}

// ConvertPendingItem turns a queued item into an encounter line at the
// product's list price and marks the item consumed.
func (s *EncounterService) ConvertPendingItem(ctx context.Context, itemID uuid.UUID) (*entity.EncounterLine, error) {
	item, err := s.pendingRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperror.NewNotFoundError("Pending item")
	}
	if item.Consumed {
		return nil, apperror.NewConflictError("Pending item was already added to the cart")
	}

	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}

	var patientIDs []uuid.UUID
	if item.PatientID != nil {
		patientIDs = []uuid.UUID{*item.PatientID}
	}

	line, err := s.UpsertLine(ctx, &UpsertLineInput{
		EncounterID: item.EncounterID,
		ProductID:   item.ProductID,
		Qty:         item.Qty,
		UnitPrice:   product.ListPrice,
		Discount:    decimal.Zero,
		PatientIDs:  patientIDs,
		Source:      enum.LineSourcePendingItem,
	})
	if err != nil {
		return nil, err
	}

	if err := s.pendingRepo.MarkConsumed(ctx, itemID); err != nil {
		// The line exists but the item stayed queued; undo the line so the
		// item cannot be billed twice.
		_ = s.lineRepo.Delete(ctx, line.ID)
		return nil, err
	}

	return line, nil
}

// ListResources lists practitioners or rooms for header selection
func (s *EncounterService) ListResources(ctx context.Context, category enum.ResourceCategory, activeOnly bool) ([]entity.Resource, error) {
	return s.resourceRepo.ListByCategory(ctx, category, activeOnly)
}

func (s *EncounterService) requireOpenEncounter(ctx context.Context, id uuid.UUID) (*entity.Encounter, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if encounter == nil {
		return nil, apperror.NewNotFoundError("Encounter")
	}
	if encounter.State == enum.EncounterStateClosed {
		return nil, apperror.NewBadRequestError("Encounter is closed")
	}
	return encounter, nil
}

// resolvePatients loads the given patients and checks they belong to the
// encounter's customer.
func (s *EncounterService) resolvePatients(ctx context.Context, customerID uuid.UUID, patientIDs []uuid.UUID) ([]entity.Patient, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}

	patients, err := s.patientRepo.GetByIDs(ctx, patientIDs)
	if err != nil {
		return nil, err
	}
	if len(patients) != len(patientIDs) {
		return nil, apperror.NewNotFoundError("Patient")
	}
	for _, p := range patients {
		if p.OwnerID != customerID {
			return nil, apperror.NewBadRequestError("Patient " + p.Name + " does not belong to this customer")
		}
	}
	return patients, nil
}

func (s *EncounterService) validateResources(ctx context.Context, practitionerID, roomID *uuid.UUID) error {
	if practitionerID != nil {
		practitioner, err := s.resourceRepo.GetByID(ctx, *practitionerID)
		if err != nil {
			return err
		}
		if practitioner == nil || practitioner.Category != enum.ResourceCategoryPractitioner {
			return apperror.NewNotFoundError("Practitioner")
		}
	}
	if roomID != nil {
		room, err := s.resourceRepo.GetByID(ctx, *roomID)
		if err != nil {
			return err
		}
		if room == nil || room.Category != enum.ResourceCategoryLocation {
			return apperror.NewNotFoundError("Room")
		}
	}
	return nil
}
