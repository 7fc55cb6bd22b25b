package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const countriesTable = "countries"

var countryStruct = database.NewStruct(new(models.Country))

// sortColumns maps the public sort keys onto ORDER BY clauses. GDP
// sorts push nulls last so countries without an estimate trail the list
// in both directions.
var sortColumns = map[string]string{
	"gdp_desc":        "estimated_gdp DESC NULLS LAST",
	"gdp_asc":         "estimated_gdp ASC NULLS LAST",
	"name_asc":        "name ASC",
	"name_desc":       "name DESC",
	"population_desc": "population DESC",
	"population_asc":  "population ASC",
}

// SortKeys returns the accepted sort keys for GET /countries.
func SortKeys() []string {
	keys := make([]string, 0, len(sortColumns))
	for k := range sortColumns {
		keys = append(keys, k)
	}
	return keys
}

// CountryRepository handles country persistence: the refresh upsert
// transaction and the read-side queries.
type CountryRepository struct {
	*Repository
}

// NewCountryRepository creates a new country repository
func NewCountryRepository(db database.DB, logger ectologger.Logger) *CountryRepository {
	return &CountryRepository{
		Repository: NewRepository(db, logger),
	}
}

// UpsertResult reports what one refresh cycle wrote.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// UpsertAll applies one refresh cycle's rows inside a single
// transaction. Each row is matched against an existing country by
// case-insensitive name and updated, or inserted when absent. Any row
// failing rolls the whole cycle back, leaving storage untouched.
func (r *CountryRepository) UpsertAll(ctx context.Context, rows []models.CountryUpsert, refreshedAt time.Time) (UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.UpsertAll")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "UpsertAll",
		"rows":   len(rows),
	})

	var result UpsertResult

	_, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return result, Internal("failed to refresh countries")
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		var id int64
		sb := database.NewSelectBuilder()
		sb.Select("id")
		sb.From(countriesTable)
		sb.Where(sb.Equal("LOWER(name)", strings.ToLower(row.Name)))
		sb.Limit(1)

		query, args := sb.Build()
		err := tx.GetContext(ctx, &id, query, args...)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := r.insertCountry(ctx, tx, row, refreshedAt); err != nil {
				log.WithError(err).WithFields(map[string]any{"name": row.Name}).Error("failed to insert country")
				return UpsertResult{}, Internal("failed to refresh countries")
			}
			result.Inserted++
		case err != nil:
			log.WithError(err).WithFields(map[string]any{"name": row.Name}).Error("failed to match country")
			return UpsertResult{}, Internal("failed to refresh countries")
		default:
			if err := r.updateCountry(ctx, tx, id, row, refreshedAt); err != nil {
				log.WithError(err).WithFields(map[string]any{"name": row.Name, "id": id}).Error("failed to update country")
				return UpsertResult{}, Internal("failed to refresh countries")
			}
			result.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, Internal("failed to refresh countries")
	}

	log.WithFields(map[string]any{
		"inserted": result.Inserted,
		"updated":  result.Updated,
	}).Info("Committed refresh cycle")
	return result, nil
}

func (r *CountryRepository) insertCountry(ctx context.Context, tx database.Tx, row models.CountryUpsert, refreshedAt time.Time) error {
	ib := database.NewInsertBuilder()
	ib.InsertInto(countriesTable).
		Cols("name", "capital", "region", "population", "currency_code", "exchange_rate", "estimated_gdp", "flag_url", "last_refreshed_at", "created_at", "updated_at").
		Values(row.Name, row.Capital, row.Region, row.Population, row.CurrencyCode, row.ExchangeRate, row.EstimatedGDP, row.FlagURL, refreshedAt,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))

	query, args := ib.Build()
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (r *CountryRepository) updateCountry(ctx context.Context, tx database.Tx, id int64, row models.CountryUpsert, refreshedAt time.Time) error {
	ub := database.NewUpdateBuilder()
	ub.Update(countriesTable)
	ub.Set(
		ub.Assign("capital", row.Capital),
		ub.Assign("region", row.Region),
		ub.Assign("population", row.Population),
		ub.Assign("currency_code", row.CurrencyCode),
		ub.Assign("exchange_rate", row.ExchangeRate),
		ub.Assign("estimated_gdp", row.EstimatedGDP),
		ub.Assign("flag_url", row.FlagURL),
		ub.Assign("last_refreshed_at", refreshedAt),
		"updated_at = NOW()",
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// List returns countries matching the optional region/currency filters,
// ordered by the given sort key (name ascending when empty).
func (r *CountryRepository) List(ctx context.Context, q models.ListCountriesQuery) ([]models.Country, error) {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.List")
	defer span.End()

	orderBy, ok := sortColumns[q.Sort]
	if q.Sort == "" {
		orderBy = sortColumns["name_asc"]
	} else if !ok {
		return nil, BadRequest("invalid sort value")
	}

	sb := countryStruct.SelectFrom(countriesTable)
	if q.Region != "" {
		sb.Where(sb.Equal("region", q.Region))
	}
	if q.Currency != "" {
		sb.Where(sb.Equal("currency_code", strings.ToUpper(q.Currency)))
	}
	sb.OrderBy(orderBy)

	query, args := sb.Build()
	countries := []models.Country{}
	if err := r.db.SelectContext(ctx, &countries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list countries")
		return nil, Internal("failed to list countries")
	}

	return countries, nil
}

// GetByName retrieves a single country by case-insensitive name.
func (r *CountryRepository) GetByName(ctx context.Context, name string) (*models.Country, error) {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.GetByName")
	defer span.End()

	sb := countryStruct.SelectFrom(countriesTable)
	sb.Where(sb.Equal("LOWER(name)", strings.ToLower(strings.TrimSpace(name))))
	sb.Limit(1)

	query, args := sb.Build()
	var country models.Country
	err := r.db.GetContext(ctx, &country, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("country %s not found", name)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": name}).Error("failed to get country by name")
		return nil, Internal("failed to get country")
	}

	return &country, nil
}

// DeleteByName removes a single country by case-insensitive name.
func (r *CountryRepository) DeleteByName(ctx context.Context, name string) error {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.DeleteByName")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(countriesTable)
	db.Where(db.Equal("LOWER(name)", strings.ToLower(strings.TrimSpace(name))))

	query, args := db.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": name}).Error("failed to delete country")
		return Internal("failed to delete country")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to read delete result")
		return Internal("failed to delete country")
	}
	if affected == 0 {
		return NotFound("country %s not found", name)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"name": name}).Info("Deleted country")
	return nil
}

// Status returns the catalog row count and the most recent refresh time.
func (r *CountryRepository) Status(ctx context.Context) (*models.StatusResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.Status")
	defer span.End()

	var status struct {
		Total           int64      `db:"total"`
		LastRefreshedAt *time.Time `db:"last_refreshed_at"`
	}

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*) AS total", "MAX(last_refreshed_at) AS last_refreshed_at")
	sb.From(countriesTable)

	query, args := sb.Build()
	if err := r.db.GetContext(ctx, &status, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get catalog status")
		return nil, Internal("failed to get status")
	}

	return &models.StatusResponse{
		TotalCountries:  status.Total,
		LastRefreshedAt: status.LastRefreshedAt,
	}, nil
}

// TopByGDP returns the highest-estimate countries for the summary
// artifact; rows without an estimate are excluded.
func (r *CountryRepository) TopByGDP(ctx context.Context, limit int) ([]models.TopCountry, error) {
	ctx, span := tracing.StartSpan(ctx, "CountryRepository.TopByGDP")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("name", "estimated_gdp")
	sb.From(countriesTable)
	sb.Where(sb.IsNotNull("estimated_gdp"))
	sb.OrderBy("estimated_gdp DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	top := []models.TopCountry{}
	if err := r.db.SelectContext(ctx, &top, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get top countries")
		return nil, Internal("failed to get top countries")
	}

	return top, nil
}
