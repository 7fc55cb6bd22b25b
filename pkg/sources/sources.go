// Package sources fetches and validates the upstream payloads feeding a
// refresh cycle: the country registry and the exchange-rate feed.
package sources

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Population coerces whatever the registry sends (number, numeric
// string, null, junk) into a non-negative integer. It never errors;
// anything unusable becomes 0.
type Population int64

func (p *Population) UnmarshalJSON(b []byte) error {
	*p = 0

	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}

	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	// int64(f) overflows to a negative value past MaxInt64
	if f >= math.MaxInt64 {
		return nil
	}

	*p = Population(int64(f))
	return nil
}

// CurrencyEntry is one currency declared by a registry record. Only the
// code is consulted downstream.
type CurrencyEntry struct {
	Code string `json:"code"`
}

// CountryRecord is one country as reported by the registry.
type CountryRecord struct {
	Name       string          `json:"name"`
	Capital    string          `json:"capital"`
	Region     string          `json:"region"`
	Population Population      `json:"population"`
	Flag       string          `json:"flag"`
	Currencies []CurrencyEntry `json:"currencies"`
}

// ratesDocument is the exchange-rate feed envelope.
type ratesDocument struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func decodeCountries(body []byte) ([]CountryRecord, error) {
	var records []CountryRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeRates(body []byte) (map[string]float64, error) {
	var doc ratesDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return doc.Rates, nil
}
