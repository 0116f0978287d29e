// Package mercadopago is a small client for the MercadoPago checkout and
// payments REST API, plus helpers to authenticate and normalise the webhook
// notifications it sends.
package mercadopago

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// APIError is returned when MercadoPago answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago request status: %d: %s", e.StatusCode, e.Body)
}

// Client talks to the MercadoPago REST API with an access token.
type Client struct {
	http *resty.Client
}

// NewClient creates a Client for baseURL authenticated with accessToken.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: http}
}

// GetPayment fetches a payment by its id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var payment Payment
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&payment).
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return &payment, nil
}

// CreatePreference creates a checkout preference the buyer is redirected to.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	r := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&pref)
	if req.ExternalReference != "" {
		r.SetHeader("X-Idempotency-Key", "preference-"+req.ExternalReference)
	}
	resp, err := r.Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to create preference: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return &pref, nil
}
