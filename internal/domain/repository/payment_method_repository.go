package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
)

// PaymentMethodRepository defines the interface for payment method operations
type PaymentMethodRepository interface {
	Create(ctx context.Context, method *entity.PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error)
	GetByName(ctx context.Context, name string) (*entity.PaymentMethod, error)
	// GetCreditMethod returns the active store-credit method, nil if none configured
	GetCreditMethod(ctx context.Context) (*entity.PaymentMethod, error)
	Update(ctx context.Context, method *entity.PaymentMethod) error
	List(ctx context.Context, activeOnly bool) ([]entity.PaymentMethod, error)
}
