package models

import (
	"time"
)

// Country is the persisted catalog entity. Name is the natural match
// key; uniqueness is enforced case-insensitively by the schema.
// Field order matches schema: id, name, capital, region, population, ...
type Country struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Capital         *string    `json:"capital" db:"capital"`
	Region          *string    `json:"region" db:"region"`
	Population      int64      `json:"population" db:"population"`
	CurrencyCode    *string    `json:"currency_code" db:"currency_code"`
	ExchangeRate    *float64   `json:"exchange_rate" db:"exchange_rate"`
	EstimatedGDP    *float64   `json:"estimated_gdp" db:"estimated_gdp"`
	FlagURL         *string    `json:"flag_url" db:"flag_url"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at" db:"last_refreshed_at"`
	CreatedAt       time.Time  `json:"-" db:"created_at"`
	UpdatedAt       time.Time  `json:"-" db:"updated_at"`
}

// CountryUpsert is one row of a refresh cycle: upstream display fields
// plus the derived fields computed by the calculator.
type CountryUpsert struct {
	Name         string
	Capital      *string
	Region       *string
	Population   int64
	FlagURL      *string
	CurrencyCode *string
	ExchangeRate *float64
	EstimatedGDP *float64
}

// ListCountriesQuery holds the supported filters and sort key for
// GET /countries.
type ListCountriesQuery struct {
	Region   string `query:"region"`
	Currency string `query:"currency"`
	Sort     string `query:"sort" validate:"omitempty,oneof=gdp_desc gdp_asc name_asc name_desc population_desc population_asc"`
}

// RefreshResponse is the success body for POST /countries/refresh
type RefreshResponse struct {
	Message         string    `json:"message"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// StatusResponse is the body for GET /status
type StatusResponse struct {
	TotalCountries  int64      `json:"total_countries"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at"`
}

// MessageResponse is a generic {message} body
type MessageResponse struct {
	Message string `json:"message"`
}

// CatalogSummary is the data rendered into the summary artifact
type CatalogSummary struct {
	TotalCountries int64
	RefreshedAt    time.Time
	TopCountries   []TopCountry
}

// TopCountry is one entry of the top-5 by estimated GDP
type TopCountry struct {
	Name         string   `db:"name"`
	EstimatedGDP *float64 `db:"estimated_gdp"`
}
