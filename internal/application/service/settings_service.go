package service

import (
	"context"

	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
)

// SettingsService handles clinic-wide configuration
type SettingsService struct {
	settingsRepo repository.SettingsRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(settingsRepo repository.SettingsRepository) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
	}
}

// GetSettings retrieves the clinic settings, creating defaults if not exists
func (s *SettingsService) GetSettings(ctx context.Context) (*entity.ClinicSettings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		settings = &entity.ClinicSettings{
			ClinicName:   "Clinic",
			CurrencyCode: "KWD",
		}
		if err := s.settingsRepo.Create(ctx, settings); err != nil {
			return nil, err
		}
	}

	return settings, nil
}

// UpdateSettingsInput represents the input for updating clinic settings
type UpdateSettingsInput struct {
	ClinicName   *string
	CurrencyCode *string
	Address      *string
	Phone        *string
	Email        *string
	ReceiptNote  *string
}

// UpdateSettings updates the clinic settings
func (s *SettingsService) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*entity.ClinicSettings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if input.ClinicName != nil {
		settings.ClinicName = *input.ClinicName
	}
	if input.CurrencyCode != nil && *input.CurrencyCode != "" {
		settings.CurrencyCode = *input.CurrencyCode
	}
	if input.Address != nil {
		settings.Address = input.Address
	}
	if input.Phone != nil {
		settings.Phone = input.Phone
	}
	if input.Email != nil {
		settings.Email = input.Email
	}
	if input.ReceiptNote != nil {
		settings.ReceiptNote = input.ReceiptNote
	}

	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}
