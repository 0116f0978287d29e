package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pokeshop/internal/models"
	"pokeshop/internal/services"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	log      *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes registers the public catalog routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleListCatalog)
	productRoutes.Get("/:id", h.HandleGetCatalogProduct)
}

// RegisterAdminRoutes registers product management routes on an
// administrator-only router.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// ProductRequest is the body of product create and update requests.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Category    string          `json:"category" validate:"omitempty,max=100"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	IsActive    *bool           `json:"isActive"`
}

func (r ProductRequest) toModel(id string) *models.Product {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Price:       r.Price,
		Stock:       r.Stock,
		IsActive:    active,
	}
}

// HandleListCatalog lists active products with prices in pesos and dollars.
func (h *ProductHandler) HandleListCatalog(c *fiber.Ctx) error {
	products, err := h.service.ListCatalog(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(products)
}

// HandleGetCatalogProduct returns one active product.
func (h *ProductHandler) HandleGetCatalogProduct(c *fiber.Ctx) error {
	product, err := h.service.GetCatalogProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

// HandleGetProducts lists every product, including inactive ones.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(products)
}

// HandleCreateProduct adds a product to the catalog.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	product := req.toModel("")
	if err := h.service.CreateProduct(c.UserContext(), product); err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces a product's editable fields.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	product := req.toModel(c.Params("id"))
	if err := h.service.UpdateProduct(c.UserContext(), product); err != nil {
		return respondError(c, h.log, err)
	}
	updated, err := h.service.GetProductByID(c.UserContext(), product.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(updated)
}

// HandleDeleteProduct removes a product from the catalog. Past orders keep
// their snapshots.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info("product deleted", zap.String("product_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}
