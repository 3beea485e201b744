package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"github.com/vetdesk/clinicpos-api/internal/infrastructure/cache"
	"github.com/vetdesk/clinicpos-api/pkg/apperror"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
	"github.com/vetdesk/clinicpos-api/pkg/utils"
	"go.uber.org/zap"
)

const catalogCacheTTL = 2 * time.Minute

// CatalogService handles product and category operations for the terminal
// catalog screen. Listings are served through the catalog cache; every
// write invalidates it.
type CatalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	catalogCache cache.CatalogCache
	logger       *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	catalogCache cache.CatalogCache,
	logger *zap.Logger,
) *CatalogService {
	if catalogCache == nil {
		catalogCache = cache.NoopCache{}
	}
	return &CatalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		catalogCache: catalogCache,
		logger:       logger,
	}
}

// CreateProductInput represents the create product input
type CreateProductInput struct {
	Name       string
	Code       string
	Barcode    *string
	ListPrice  decimal.Decimal
	CategoryID *uuid.UUID
	Sellable   bool
	Notes      *string
}

// CreateProduct creates a new catalog product
func (s *CatalogService) CreateProduct(ctx context.Context, input *CreateProductInput) (*entity.Product, error) {
	code := input.Code
	if code == "" {
		code = utils.GenerateProductCode()
	}

	existing, err := s.productRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError("Product with this code already exists")
	}

	if input.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, apperror.NewNotFoundError("Category")
		}
	}

	if input.ListPrice.IsNegative() {
		return nil, apperror.NewBadRequestError("List price cannot be negative")
	}

	product := &entity.Product{
		Name:       input.Name,
		Code:       code,
		Barcode:    input.Barcode,
		ListPrice:  input.ListPrice.Round(entity.MoneyScale),
		CategoryID: input.CategoryID,
		Sellable:   input.Sellable,
		Notes:      input.Notes,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return product, nil
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// GetProductByBarcode resolves a scanned barcode to a product
func (s *CatalogService) GetProductByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	product, err := s.productRepo.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// ListProducts lists products with filtering, served through the cache
func (s *CatalogService) ListProducts(ctx context.Context, params *repository.ProductFilterParams) (*pagination.PaginatedResult[entity.Product], error) {
	key := listingCacheKey(params)

	if cached, hit, err := s.catalogCache.GetProducts(ctx, key); err == nil && hit {
		pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, cached.Total)
		return pagination.NewPaginatedResult(cached.Products, pag), nil
	} else if err != nil {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	products, total, err := s.productRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	listing := &cache.ProductListing{Products: products, Total: total}
	if err := s.catalogCache.SetProducts(ctx, key, listing, catalogCacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(products, pag), nil
}

// SearchProducts finds sellable products matching a free-text query or an
// exact barcode.
func (s *CatalogService) SearchProducts(ctx context.Context, query string) ([]entity.Product, error) {
	if byBarcode, err := s.productRepo.GetByBarcode(ctx, query); err == nil && byBarcode != nil {
		return []entity.Product{*byBarcode}, nil
	}

	params := &repository.ProductFilterParams{
		Pagination:   &pagination.PaginationParams{Page: 1, PerPage: 50},
		Search:       query,
		SellableOnly: true,
	}
	products, _, err := s.productRepo.List(ctx, params)
	return products, err
}

// UpdateProductInput represents the update product input
type UpdateProductInput struct {
	ID         uuid.UUID
	Name       *string
	Barcode    *string
	ListPrice  *decimal.Decimal
	CategoryID *uuid.UUID
	Sellable   *bool
	Notes      *string
}

// UpdateProduct updates a product
func (s *CatalogService) UpdateProduct(ctx context.Context, input *UpdateProductInput) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Barcode != nil {
		product.Barcode = input.Barcode
	}
	if input.ListPrice != nil {
		if input.ListPrice.IsNegative() {
			return nil, apperror.NewBadRequestError("List price cannot be negative")
		}
		product.ListPrice = input.ListPrice.Round(entity.MoneyScale)
	}
	if input.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, apperror.NewNotFoundError("Category")
		}
		product.CategoryID = input.CategoryID
	}
	if input.Sellable != nil {
		product.Sellable = *input.Sellable
	}
	if input.Notes != nil {
		product.Notes = input.Notes
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return product, nil
}

// DeleteProduct deletes a product. The discount product backing cart-wide
// discounts cannot be removed.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if product == nil {
		return apperror.NewNotFoundError("Product")
	}
	if product.IsGlobalDiscount() {
		return apperror.NewBadRequestError("The discount product cannot be deleted")
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// CreateCategoryInput represents the create category input
type CreateCategoryInput struct {
	Name string
}

// CreateCategory creates a new category
func (s *CatalogService) CreateCategory(ctx context.Context, input *CreateCategoryInput) (*entity.Category, error) {
	slug := utils.Slugify(input.Name)

	existing, err := s.categoryRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError("Category with this name already exists")
	}

	category := &entity.Category{
		Name: input.Name,
		Slug: slug,
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// ListCategories lists all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]entity.Category, error) {
	return s.categoryRepo.List(ctx)
}

// UpdateCategory renames a category
func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name string) (*entity.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperror.NewNotFoundError("Category")
	}

	category.Name = name
	category.Slug = utils.Slugify(name)

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory deletes a category
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return apperror.NewNotFoundError("Category")
	}
	return s.categoryRepo.Delete(ctx, id)
}

func (s *CatalogService) invalidateListings(ctx context.Context) {
	if err := s.catalogCache.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func listingCacheKey(params *repository.ProductFilterParams) string {
	category := ""
	if params.CategoryID != nil {
		category = params.CategoryID.String()
	}
	return fmt.Sprintf("%d:%d:%s:%s:%t:%s:%s",
		params.Pagination.Page, params.Pagination.PerPage,
		params.Search, category, params.SellableOnly,
		params.SortBy, params.SortOrder)
}
