package repository

import (
	"context"

	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
)

// SettingsRepository defines the interface for clinic settings access
type SettingsRepository interface {
	// Get returns the single settings row, nil if not yet created
	Get(ctx context.Context) (*entity.ClinicSettings, error)
	Create(ctx context.Context, settings *entity.ClinicSettings) error
	Update(ctx context.Context, settings *entity.ClinicSettings) error
}
