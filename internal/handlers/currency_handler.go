package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pokeshop/internal/currency"
)

// RateCache is the exchange rate cache served by CurrencyHandler.
type RateCache interface {
	GetRate() currency.Rate
	ForceRefresh(ctx context.Context) (currency.Rate, error)
}

// CurrencyHandler exposes the USD exchange rate.
type CurrencyHandler struct {
	rates RateCache
	log   *zap.Logger
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(rates RateCache, log *zap.Logger) *CurrencyHandler {
	return &CurrencyHandler{rates: rates, log: log}
}

// RegisterRoutes registers the currency routes. refreshAuth guards the
// forced refresh.
func (h *CurrencyHandler) RegisterRoutes(router fiber.Router, refreshAuth fiber.Handler) {
	currencyRoutes := router.Group("/currency")
	currencyRoutes.Get("/usd-price", h.HandleGetRate)
	currencyRoutes.Post("/usd-price", refreshAuth, h.HandleRefreshRate)
}

// HandleGetRate returns the cached rate without waiting for a refresh.
func (h *CurrencyHandler) HandleGetRate(c *fiber.Ctx) error {
	return c.JSON(h.rates.GetRate())
}

// HandleRefreshRate fetches the rate now.
func (h *CurrencyHandler) HandleRefreshRate(c *fiber.Ctx) error {
	rate, err := h.rates.ForceRefresh(c.UserContext())
	if err != nil {
		h.log.Warn("exchange rate refresh failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message":     "Exchange rate provider unavailable",
			"error":       err.Error(),
			"usdPrice":    rate.USDPrice,
			"lastUpdated": rate.LastUpdated,
			"isUpdating":  rate.IsUpdating,
		})
	}
	return c.JSON(rate)
}
