// Package gdp derives the per-country economic estimate from the
// upstream registry record and the exchange-rate mapping.
package gdp

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/sources"
)

const (
	// MultiplierMin and MultiplierMax bound the uniform random draw
	// applied to each country's population on every refresh.
	MultiplierMin = 1000
	MultiplierMax = 2000
)

// Derived holds the computed columns for one country. The fields follow
// the policy table: a country with no declared currency gets a zero GDP,
// a currency without a usable rate gets null rate and null GDP, and a
// resolvable rate yields population * multiplier / rate.
type Derived struct {
	CurrencyCode *string
	ExchangeRate *float64
	EstimatedGDP *float64
}

// Calculator computes derived fields. It is pure apart from the random
// multiplier draw, which is intentionally resampled per country per
// refresh, so repeated refreshes do not reproduce identical estimates.
type Calculator struct {
	rng *rand.Rand
}

// NewCalculator creates a calculator seeded from the wall clock.
func NewCalculator() *Calculator {
	return NewCalculatorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewCalculatorWithSource creates a calculator with a caller-provided
// randomness source, for deterministic tests.
func NewCalculatorWithSource(src rand.Source) *Calculator {
	return &Calculator{rng: rand.New(src)}
}

// Derive evaluates the policy table for one country. Only the first
// currency entry is ever consulted. Populations below zero are treated
// as unknown and coerce to 0.
func (c *Calculator) Derive(population int64, currencies []sources.CurrencyEntry, rates map[string]float64) Derived {
	if population < 0 {
		population = 0
	}

	if len(currencies) == 0 {
		zero := 0.0
		return Derived{EstimatedGDP: &zero}
	}

	code := strings.TrimSpace(currencies[0].Code)
	if code == "" {
		zero := 0.0
		return Derived{EstimatedGDP: &zero}
	}

	rate, ok := rates[code]
	if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		// currency known, rate unusable
		return Derived{CurrencyCode: &code}
	}

	multiplier := MultiplierMin + c.rng.Intn(MultiplierMax-MultiplierMin+1)
	estimate := roundTwoPlaces(float64(population) * float64(multiplier) / rate)

	return Derived{
		CurrencyCode: &code,
		ExchangeRate: &rate,
		EstimatedGDP: &estimate,
	}
}

func roundTwoPlaces(v float64) float64 {
	return math.Round(v*100) / 100
}
