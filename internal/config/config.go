package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds every runtime setting of the shop.
type Config struct {
	Env        string
	AppPort    string
	AppBaseURL string
	LogLevel   string

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret     string
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	CronSecret    string

	RabbitMQURL string
	RedisAddr   string

	MercadoPago MercadoPagoConfig
	Currency    CurrencyConfig
	Checkout    CheckoutConfig

	HTTPClientTimeout time.Duration
}

type MercadoPagoConfig struct {
	AccessToken     string
	WebhookSecret   string
	APIURL          string
	NotificationURL string
}

type CurrencyConfig struct {
	APIURL       string
	TTL          time.Duration
	FallbackRate decimal.Decimal
}

type CheckoutConfig struct {
	ShippingCost decimal.Decimal
	TaxRate      decimal.Decimal
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// ErrMissingWebhookSecret is returned by Validate when a non-development
// deployment has no MercadoPago webhook secret.
var ErrMissingWebhookSecret = errors.New("MP_WEBHOOK_SECRET is required outside development")

// Validate rejects settings the shop must not start with.
func (c Config) Validate() error {
	if !c.IsDevelopment() && strings.TrimSpace(c.MercadoPago.WebhookSecret) == "" {
		return ErrMissingWebhookSecret
	}
	return nil
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvProduction)
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=pokeshop port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "change_me")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("CRON_SECRET", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("MP_ACCESS_TOKEN", "")
	v.SetDefault("MP_WEBHOOK_SECRET", "")
	v.SetDefault("MP_API_URL", "https://api.mercadopago.com")
	v.SetDefault("MP_NOTIFICATION_URL", "")
	v.SetDefault("FX_API_URL", "https://dolarapi.com/v1/dolares/oficial")
	v.SetDefault("FX_TTL", "30m")
	v.SetDefault("FX_FALLBACK_RATE", "1200")
	v.SetDefault("SHIPPING_COST", "0")
	v.SetDefault("TAX_RATE", "0")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", "10s")
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		Env:            v.GetString("APP_ENV"),
		AppPort:        v.GetString("APP_PORT"),
		AppBaseURL:     strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		AdminUsername:  v.GetString("ADMIN_USERNAME"),
		AdminEmail:     v.GetString("ADMIN_EMAIL"),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
		CronSecret:     v.GetString("CRON_SECRET"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		MercadoPago: MercadoPagoConfig{
			AccessToken:     v.GetString("MP_ACCESS_TOKEN"),
			WebhookSecret:   v.GetString("MP_WEBHOOK_SECRET"),
			APIURL:          strings.TrimRight(v.GetString("MP_API_URL"), "/"),
			NotificationURL: v.GetString("MP_NOTIFICATION_URL"),
		},
		Currency: CurrencyConfig{
			APIURL:       v.GetString("FX_API_URL"),
			TTL:          v.GetDuration("FX_TTL"),
			FallbackRate: decimalOr(v.GetString("FX_FALLBACK_RATE"), decimal.NewFromInt(1200)),
		},
		Checkout: CheckoutConfig{
			ShippingCost: decimalOr(v.GetString("SHIPPING_COST"), decimal.Zero),
			TaxRate:      decimalOr(v.GetString("TAX_RATE"), decimal.Zero),
		},
		HTTPClientTimeout: v.GetDuration("HTTP_CLIENT_TIMEOUT"),
	}

	if cfg.MercadoPago.NotificationURL == "" {
		cfg.MercadoPago.NotificationURL = cfg.AppBaseURL + "/api/mercadopago/webhook"
	}
	if cfg.Currency.TTL <= 0 {
		cfg.Currency.TTL = 30 * time.Minute
	}
	if cfg.HTTPClientTimeout <= 0 {
		cfg.HTTPClientTimeout = 10 * time.Second
	}
	return cfg
}

func decimalOr(s string, def decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return d
}
