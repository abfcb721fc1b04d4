package convert

import (
	"context"
	"log/slog"
	"time"

	"github.com/agropanel/agriprice-go/internal/conf"
	"github.com/agropanel/agriprice-go/internal/datastore"
	"github.com/agropanel/agriprice-go/internal/errors"
	"github.com/agropanel/agriprice-go/internal/logging"
	"github.com/go-resty/resty/v2"
)

// ratesResponse is the single accepted response schema of the external rates
// feed. Responses that do not match it fail the refresh; there is no probing
// for alternate field names.
type ratesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Fetcher pulls currency rates from an external feed and stores them in the
// conversion reference tables.
type Fetcher struct {
	client   *resty.Client
	ds       datastore.Interface
	settings *conf.Settings
	logger   *slog.Logger
}

// NewFetcher creates a rates fetcher configured from settings.
func NewFetcher(ds datastore.Interface, settings *conf.Settings) *Fetcher {
	client := resty.New().
		SetTimeout(time.Duration(settings.Conversion.Provider.Timeout) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if settings.Conversion.Provider.APIKey != "" {
		client.SetHeader("x-api-key", settings.Conversion.Provider.APIKey)
	}

	return &Fetcher{
		client:   client,
		ds:       ds,
		settings: settings,
		logger:   logging.ForService("rates-fetcher"),
	}
}

// FetchAndStore requests the rates feed and upserts each currency into the
// datastore. It returns the number of currencies stored.
//
// The feed reports rates as target-currency units per one base-currency unit
// (1 base = rate * currency). The stored RateToBase is the inverse: base
// units per one unit of the currency.
func (f *Fetcher) FetchAndStore(ctx context.Context) (int, error) {
	endpoint := f.settings.Conversion.Provider.Endpoint

	var payload ratesResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("base", f.settings.Conversion.BaseCurrency).
		SetResult(&payload).
		Get(endpoint)
	if err != nil {
		return 0, errors.New(err).
			Component("convert").
			Category(errors.CategoryRatesFetch).
			Context("endpoint", endpoint).
			Build()
	}
	if resp.StatusCode() != 200 {
		return 0, errors.Newf("rates feed returned status %d", resp.StatusCode()).
			Component("convert").
			Category(errors.CategoryRatesFetch).
			Context("endpoint", endpoint).
			Build()
	}
	if payload.Base != f.settings.Conversion.BaseCurrency {
		return 0, errors.Newf("rates feed base %q does not match configured base %q",
			payload.Base, f.settings.Conversion.BaseCurrency).
			Component("convert").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(payload.Rates) == 0 {
		return 0, errors.Newf("rates feed returned no rates").
			Component("convert").
			Category(errors.CategoryRatesFetch).
			Build()
	}

	stored := 0
	now := time.Now()
	for code, perBase := range payload.Rates {
		if perBase <= 0 {
			f.logger.Warn("skipping non-positive rate", "currency", code, "rate", perBase)
			continue
		}
		currency := &datastore.Currency{
			Code:       code,
			RateToBase: 1 / perBase,
			UpdatedAt:  now,
		}
		if err := f.ds.UpsertCurrency(currency); err != nil {
			return stored, err
		}
		stored++
	}

	f.logger.Info("currency rates stored", "count", stored, "feed_date", payload.Date)
	return stored, nil
}
