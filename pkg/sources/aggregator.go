package sources

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Aggregator fetches both upstream payloads for a refresh cycle. Either
// source failing, or returning a structurally unusable payload, aborts
// the cycle before any storage mutation.
type Aggregator struct {
	client       *httpclient.Client
	logger       ectologger.Logger
	countriesURL string
	ratesURL     string
}

// NewAggregator creates a new upstream data aggregator
func NewAggregator(client *httpclient.Client, logger ectologger.Logger, countriesURL, ratesURL string) *Aggregator {
	return &Aggregator{
		client:       client,
		logger:       logger,
		countriesURL: countriesURL,
		ratesURL:     ratesURL,
	}
}

func unavailable(details string) error {
	err := httperror.NewHTTPError(http.StatusServiceUnavailable, "External data source unavailable")
	err.Meta = map[string]any{"details": details}
	return err
}

// Fetch retrieves the country registry and the exchange-rate mapping.
// Validation here is structural only; per-field coercion is the
// calculator's job.
func (a *Aggregator) Fetch(ctx context.Context) ([]CountryRecord, map[string]float64, error) {
	ctx, span := tracing.StartSpan(ctx, "sources.Aggregator.Fetch")
	defer span.End()

	resp, err := a.client.Get(ctx, a.countriesURL, nil)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).Error("country registry fetch failed")
		return nil, nil, unavailable("could not fetch country registry")
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.WithContext(ctx).WithFields(map[string]any{"status": resp.StatusCode}).Error("country registry returned a non-200 status")
		return nil, nil, unavailable("country registry returned an unexpected status")
	}

	countries, err := decodeCountries(resp.Body)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).Error("country registry payload is malformed")
		return nil, nil, unavailable("country registry payload is malformed")
	}
	if len(countries) == 0 {
		a.logger.WithContext(ctx).Error("country registry returned an empty list")
		return nil, nil, unavailable("country registry returned an empty list")
	}

	resp, err = a.client.Get(ctx, a.ratesURL, nil)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).Error("exchange rate fetch failed")
		return nil, nil, unavailable("could not fetch exchange rates")
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.WithContext(ctx).WithFields(map[string]any{"status": resp.StatusCode}).Error("exchange rate feed returned a non-200 status")
		return nil, nil, unavailable("exchange rate feed returned an unexpected status")
	}

	rates, err := decodeRates(resp.Body)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).Error("exchange rate payload is malformed")
		return nil, nil, unavailable("exchange rate payload is malformed")
	}
	if len(rates) == 0 {
		a.logger.WithContext(ctx).Error("exchange rate feed returned no rates")
		return nil, nil, unavailable("exchange rate feed returned no rates")
	}

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"countries": len(countries),
		"rates":     len(rates),
	}).Info("Fetched upstream data")

	return countries, rates, nil
}
