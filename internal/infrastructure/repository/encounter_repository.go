package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"gorm.io/gorm"
)

type encounterRepository struct {
	db *gorm.DB
}

// NewEncounterRepository creates a new encounter repository
func NewEncounterRepository(db *gorm.DB) domainRepo.EncounterRepository {
	return &encounterRepository{db: db}
}

func (r *encounterRepository) Create(ctx context.Context, encounter *entity.Encounter) error {
	return r.db.WithContext(ctx).Create(encounter).Error
}

func (r *encounterRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Encounter, error) {
	var encounter entity.Encounter
	err := r.db.WithContext(ctx).First(&encounter, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &encounter, err
}

func (r *encounterRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*entity.Encounter, error) {
	var encounter entity.Encounter
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Practitioner").
		Preload("Room").
		Preload("Patients").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("encounter_lines.created_at ASC")
		}).
		Preload("Lines.Product").
		Preload("Lines.Patients").
		First(&encounter, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &encounter, err
}

func (r *encounterRepository) GetByName(ctx context.Context, name string) (*entity.Encounter, error) {
	var encounter entity.Encounter
	err := r.db.WithContext(ctx).First(&encounter, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &encounter, err
}

func (r *encounterRepository) Update(ctx context.Context, encounter *entity.Encounter) error {
	return r.db.WithContext(ctx).Omit("Patients", "Lines").Save(encounter).Error
}

func (r *encounterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Encounter{}, "id = ?", id).Error
}

func (r *encounterRepository) List(ctx context.Context, params *domainRepo.EncounterFilterParams) ([]entity.Encounter, int64, error) {
	var encounters []entity.Encounter
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Encounter{}).
		Scopes(SearchILike(params.Search, "name"))

	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.State != nil {
		query = query.Where("state = ?", *params.State)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Pagination.Validate()
	err := query.Preload("Customer").
		Offset(params.Pagination.Offset()).Limit(params.Pagination.PerPage).
		Order("created_at DESC").
		Find(&encounters).Error

	return encounters, total, err
}

func (r *encounterRepository) SetPatients(ctx context.Context, encounterID uuid.UUID, patients []entity.Patient) error {
	encounter := entity.Encounter{ID: encounterID}
	return r.db.WithContext(ctx).Model(&encounter).Association("Patients").Replace(patients)
}

type encounterLineRepository struct {
	db *gorm.DB
}

// NewEncounterLineRepository creates a new encounter line repository
func NewEncounterLineRepository(db *gorm.DB) domainRepo.EncounterLineRepository {
	return &encounterLineRepository{db: db}
}

func (r *encounterLineRepository) Create(ctx context.Context, line *entity.EncounterLine) error {
	return r.db.WithContext(ctx).Omit("Patients").Create(line).Error
}

func (r *encounterLineRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.EncounterLine, error) {
	var line entity.EncounterLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Practitioner").
		Preload("Room").
		Preload("Patients").
		First(&line, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &line, err
}

func (r *encounterLineRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.EncounterLine, error) {
	if len(ids) == 0 {
		return []entity.EncounterLine{}, nil
	}
	var lines []entity.EncounterLine
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&lines).Error
	return lines, err
}

func (r *encounterLineRepository) Update(ctx context.Context, line *entity.EncounterLine) error {
	return r.db.WithContext(ctx).Omit("Patients").Save(line).Error
}

func (r *encounterLineRepository) UpdateBatch(ctx context.Context, lines []entity.EncounterLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range lines {
			if err := tx.Omit("Patients").Save(&lines[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *encounterLineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.EncounterLine{}, "id = ?", id).Error
}

func (r *encounterLineRepository) ListByEncounter(ctx context.Context, encounterID uuid.UUID, filter *domainRepo.LineFilterParams) ([]entity.EncounterLine, error) {
	var lines []entity.EncounterLine

	query := r.db.WithContext(ctx).
		Where("encounter_id = ?", encounterID)

	if filter != nil {
		if filter.PayableOnly {
			query = query.
				Where("payment_status IN ?", []enum.PaymentStatus{enum.PaymentStatusPending, enum.PaymentStatusPartial}).
				Where("sub_total - paid_amount > 0")
		}
		if len(filter.Statuses) > 0 {
			query = query.Where("payment_status IN ?", filter.Statuses)
		}
	}

	err := query.Preload("Product").Preload("Practitioner").Preload("Room").Preload("Patients").
		Order("created_at ASC").
		Find(&lines).Error
	return lines, err
}

func (r *encounterLineRepository) SetPatients(ctx context.Context, lineID uuid.UUID, patients []entity.Patient) error {
	line := entity.EncounterLine{ID: lineID}
	return r.db.WithContext(ctx).Model(&line).Association("Patients").Replace(patients)
}
