package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
)

// ProductListing is one cached page of catalog results together with the
// unpaginated total that produced it.
type ProductListing struct {
	Products []entity.Product `json:"products"`
	Total    int64            `json:"total"`
}

// CatalogCache caches catalog product listings keyed by the query they
// answer. Misses are not errors.
type CatalogCache interface {
	GetProducts(ctx context.Context, key string) (*ProductListing, bool, error)
	SetProducts(ctx context.Context, key string, listing *ProductListing, ttl time.Duration) error
	// InvalidateProducts drops all cached product listings
	InvalidateProducts(ctx context.Context) error
}

// CreditCache caches customer credit balances
type CreditCache interface {
	GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, bool, error)
	SetBalance(ctx context.Context, customerID uuid.UUID, balance decimal.Decimal, ttl time.Duration) error
	InvalidateBalance(ctx context.Context, customerID uuid.UUID) error
}

// NoopCache satisfies both cache interfaces without caching anything.
// Used when redis is not configured.
type NoopCache struct{}

func (NoopCache) GetProducts(_ context.Context, _ string) (*ProductListing, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetProducts(_ context.Context, _ string, _ *ProductListing, _ time.Duration) error {
	return nil
}

func (NoopCache) InvalidateProducts(_ context.Context) error {
	return nil
}

func (NoopCache) GetBalance(_ context.Context, _ uuid.UUID) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (NoopCache) SetBalance(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _ time.Duration) error {
	return nil
}

func (NoopCache) InvalidateBalance(_ context.Context, _ uuid.UUID) error {
	return nil
}
