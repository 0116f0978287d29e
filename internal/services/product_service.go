package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pokeshop/internal/currency"
	"pokeshop/internal/models"
	"pokeshop/internal/repositories"
)

// RateSource provides the current USD exchange rate.
type RateSource interface {
	GetRate() currency.Rate
}

// CatalogProduct is a product as shown to shoppers, with its price in dollars.
type CatalogProduct struct {
	models.Product
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo  repositories.ProductRepository
	rates RateSource
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, rates RateSource) *ProductService {
	return &ProductService{
		repo:  repo,
		rates: rates,
	}
}

// ListCatalog returns the active products priced in both currencies.
func (s *ProductService) ListCatalog(ctx context.Context) ([]CatalogProduct, error) {
	products, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	rate := s.usdRate()
	catalog := make([]CatalogProduct, 0, len(products))
	for _, p := range products {
		catalog = append(catalog, CatalogProduct{Product: p, PriceUSD: ToUSD(p.Price, rate)})
	}
	return catalog, nil
}

// GetCatalogProduct returns one active product. Inactive products are
// reported as not found.
func (s *ProductService) GetCatalogProduct(ctx context.Context, id string) (*CatalogProduct, error) {
	product, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return &CatalogProduct{Product: *product, PriceUSD: ToUSD(product.Price, s.usdRate())}, nil
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return product, nil
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}
	return notFound(s.repo.Update(ctx, product), product.ID)
}

// DeleteProduct removes a product from the catalog.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return notFound(s.repo.Delete(ctx, id), id)
}

func (s *ProductService) usdRate() decimal.Decimal {
	if s.rates == nil {
		return decimal.Zero
	}
	return s.rates.GetRate().USDPrice
}

// ToUSD converts a peso amount to dollars at rate, rounded to cents. A
// non-positive rate yields zero.
func ToUSD(ars, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return ars.Div(rate).Round(2)
}

func checkProduct(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !product.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	}
	if product.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	return nil
}

func notFound(err error, id string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return err
}
