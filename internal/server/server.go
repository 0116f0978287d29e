// Package server assembles the HTTP application.
package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"pokeshop/internal/handlers"
	"pokeshop/internal/middleware"
	"pokeshop/internal/services"
)

// Deps are the collaborators the HTTP application is built from.
type Deps struct {
	Log         *zap.Logger
	AuthService *services.AuthService
	CronSecret  string

	Auth        *handlers.AuthHandler
	Products    *handlers.ProductHandler
	Orders      *handlers.OrderHandler
	MercadoPago *handlers.MercadoPagoHandler
	Currency    *handlers.CurrencyHandler
}

// NewApp creates the Fiber application with every route registered.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "pokeshop",
		ErrorHandler: errorHandler(d.Log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(d.Log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	requireAuth := middleware.AuthRequired(d.AuthService)
	optionalAuth := middleware.OptionalAuth(d.AuthService)

	api := app.Group("/api")
	d.Auth.RegisterRoutes(api)
	d.Products.RegisterRoutes(api)
	d.Orders.RegisterRoutes(api, requireAuth, optionalAuth)
	d.MercadoPago.RegisterRoutes(api, optionalAuth)
	d.Currency.RegisterRoutes(api, middleware.AdminOrCronSecret(d.AuthService, d.CronSecret))

	admin := api.Group("/admin", middleware.AdminRequired(d.AuthService))
	d.Products.RegisterAdminRoutes(admin)
	d.Orders.RegisterAdminRoutes(admin)

	return app
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{
			"message": utils.StatusMessage(code),
			"error":   err.Error(),
		})
	}
}
