package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DolarAPIQuote is the response of a dolarapi.com quote endpoint.
type DolarAPIQuote struct {
	Compra             decimal.Decimal `json:"compra"`
	Venta              decimal.Decimal `json:"venta"`
	Casa               string          `json:"casa"`
	FechaActualizacion time.Time       `json:"fechaActualizacion"`
}

// DolarAPIFetcher reads the selling price of the dollar from a dolarapi.com
// style endpoint.
type DolarAPIFetcher struct {
	client *resty.Client
	url    string
}

// NewDolarAPIFetcher creates a fetcher for url.
func NewDolarAPIFetcher(url string, timeout time.Duration) *DolarAPIFetcher {
	return &DolarAPIFetcher{
		client: resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		url:    url,
	}
}

func (f *DolarAPIFetcher) FetchUSDRate(ctx context.Context) (decimal.Decimal, error) {
	var quote DolarAPIQuote
	resp, err := f.client.R().SetContext(ctx).SetResult(&quote).Get(f.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange rate request: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("exchange rate request status: %d", resp.StatusCode())
	}
	if !quote.Venta.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate response has no selling price")
	}
	return quote.Venta, nil
}
