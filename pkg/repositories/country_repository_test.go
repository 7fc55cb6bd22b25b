package repositories_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newMockRepo(t *testing.T) (*repositories.CountryRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewDatabaseInstance(sqlx.NewDb(mockDB, "sqlmock"), noopLogger())
	return repositories.NewCountryRepository(db, noopLogger()), mock
}

func str(s string) *string { return &s }

func sampleRow(name string) models.CountryUpsert {
	rate := 1600.5
	gdp := 1234.56
	return models.CountryUpsert{
		Name:         name,
		Capital:      str("Abuja"),
		Region:       str("Africa"),
		Population:   206139589,
		FlagURL:      str("https://flagcdn.com/ng.svg"),
		CurrencyCode: str("NGN"),
		ExchangeRate: &rate,
		EstimatedGDP: &gdp,
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err))
}

func TestUpsertAll_InsertsAndUpdates(t *testing.T) {
	repo, mock := newMockRepo(t)
	refreshedAt := time.Now().UTC()

	mock.ExpectBegin()

	// first row does not exist yet
	mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO countries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// second row matches an existing id
	mock.ExpectQuery("SELECT id FROM countries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("UPDATE countries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := repo.UpsertAll(context.Background(), []models.CountryUpsert{
		sampleRow("Nigeria"),
		sampleRow("Ghana"),
	}, refreshedAt)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAll_RollsBackWhenARowFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO countries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// mid-cycle failure rolls everything back
	mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(errors.New("connection reset"))

	mock.ExpectRollback()

	result, err := repo.UpsertAll(context.Background(), []models.CountryUpsert{
		sampleRow("Nigeria"),
		sampleRow("Ghana"),
	}, time.Now().UTC())

	assertStatus(t, err, http.StatusInternalServerError)
	assert.Zero(t, result.Inserted)
	assert.Zero(t, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAll_RollsBackWhenCommitFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO countries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("deadlock"))

	_, err := repo.UpsertAll(context.Background(), []models.CountryUpsert{sampleRow("Nigeria")}, time.Now().UTC())

	assertStatus(t, err, http.StatusInternalServerError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_UnknownSortRejected(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.List(context.Background(), models.ListCountriesQuery{Sort: "shoe_size"})
	assertStatus(t, err, http.StatusBadRequest)
}

func TestList_AppliesFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "name", "capital", "region", "population", "currency_code", "exchange_rate", "estimated_gdp", "flag_url", "last_refreshed_at", "created_at", "updated_at"}).
		AddRow(1, "Nigeria", "Abuja", "Africa", 206139589, "NGN", 1600.5, 1234.56, "https://flagcdn.com/ng.svg", time.Now(), time.Now(), time.Now())

	mock.ExpectQuery("SELECT .+ FROM countries WHERE .+").
		WithArgs("Africa", "NGN").
		WillReturnRows(rows)

	// currency filter is case-insensitive
	countries, err := repo.List(context.Background(), models.ListCountriesQuery{Region: "Africa", Currency: "ngn"})
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "Nigeria", countries[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByName_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT .+ FROM countries").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByName(context.Background(), "Atlantis")
	assertStatus(t, err, http.StatusNotFound)
}

func TestDeleteByName_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM countries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByName(context.Background(), "Atlantis")
	assertStatus(t, err, http.StatusNotFound)
}

func TestDeleteByName_MatchesCaseInsensitively(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM countries").
		WithArgs("nigeria").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteByName(context.Background(), "NiGeRiA")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	refreshedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "last_refreshed_at"}).AddRow(250, refreshedAt))

	status, err := repo.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250), status.TotalCountries)
	require.NotNil(t, status.LastRefreshedAt)
	assert.Equal(t, refreshedAt, status.LastRefreshedAt.UTC())
}

func TestStatus_EmptyCatalog(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "last_refreshed_at"}).AddRow(0, nil))

	status, err := repo.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.TotalCountries)
	assert.Nil(t, status.LastRefreshedAt)
}

func TestTopByGDP(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"name", "estimated_gdp"}).
		AddRow("Nigeria", 9000.5).
		AddRow("Ghana", 800.25)

	mock.ExpectQuery("SELECT name, estimated_gdp FROM countries").
		WillReturnRows(rows)

	top, err := repo.TopByGDP(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Nigeria", top[0].Name)
}
