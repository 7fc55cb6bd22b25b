package refresh_test

import (
	"context"
	"database/sql"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/gdp"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/refresh"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/summary"
)

const countriesPayload = `[
	{"name": "Nigeria", "capital": "Abuja", "region": "Africa", "population": 206139589,
	 "flag": "https://flagcdn.com/ng.svg", "currencies": [{"code": "NGN"}]},
	{"name": "   ", "population": 5},
	{"name": "Atlantis", "population": 1000, "currencies": [{"code": "ATL"}]}
]`

const ratesPayload = `{"result": "success", "rates": {"USD": 1, "NGN": 1600.5}}`

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fixture struct {
	service *refresh.Service
	mock    sqlmock.Sqlmock
	cache   string
}

func newFixture(t *testing.T, countriesHandler, ratesHandler http.Handler) *fixture {
	t.Helper()

	countriesSrv := httptest.NewServer(countriesHandler)
	t.Cleanup(countriesSrv.Close)
	ratesSrv := httptest.NewServer(ratesHandler)
	t.Cleanup(ratesSrv.Close)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger := noopLogger()
	db := database.NewDatabaseInstance(sqlx.NewDb(mockDB, "sqlmock"), logger)
	repo := repositories.NewCountryRepository(db, logger)

	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	aggregator := sources.NewAggregator(client, logger, countriesSrv.URL, ratesSrv.URL)

	cache := t.TempDir()
	generator := summary.NewGenerator(cache, logger)
	calculator := gdp.NewCalculatorWithSource(rand.NewSource(1))

	return &fixture{
		service: refresh.NewService(repo, aggregator, calculator, generator, nil, logger),
		mock:    mock,
		cache:   cache,
	}
}

func serve(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestRefresh_FullCycle(t *testing.T) {
	f := newFixture(t, serve(http.StatusOK, countriesPayload), serve(http.StatusOK, ratesPayload))

	f.mock.ExpectBegin()

	// Nigeria is new
	f.mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(sql.ErrNoRows)
	f.mock.ExpectExec("INSERT INTO countries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Atlantis already exists; the blank-name record is skipped entirely
	f.mock.ExpectQuery("SELECT id FROM countries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	f.mock.ExpectExec("UPDATE countries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f.mock.ExpectCommit()

	// summary regeneration re-reads the committed catalog
	f.mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "last_refreshed_at"}).AddRow(2, time.Now().UTC()))
	f.mock.ExpectQuery("SELECT name, estimated_gdp FROM countries").
		WillReturnRows(sqlmock.NewRows([]string{"name", "estimated_gdp"}).AddRow("Nigeria", 9000.5))

	resp, err := f.service.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.LastRefreshedAt.IsZero())

	// artifact written as part of the cycle
	_, err = os.Stat(f.cache + "/" + summary.ArtifactName)
	assert.NoError(t, err)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRefresh_UpstreamFailureLeavesCatalogUntouched(t *testing.T) {
	f := newFixture(t, serve(http.StatusInternalServerError, "boom"), serve(http.StatusOK, ratesPayload))

	_, err := f.service.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(err))

	// nothing was written: no transaction, no artifact
	assert.NoError(t, f.mock.ExpectationsWereMet())
	_, statErr := os.Stat(f.cache + "/" + summary.ArtifactName)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRefresh_SummaryFailureDoesNotFailCycle(t *testing.T) {
	f := newFixture(t, serve(http.StatusOK, countriesPayload), serve(http.StatusOK, ratesPayload))

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM countries").
		WillReturnError(sql.ErrNoRows)
	f.mock.ExpectExec("INSERT INTO countries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectQuery("SELECT id FROM countries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	f.mock.ExpectExec("UPDATE countries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	// the post-commit status read fails; the refresh must still succeed
	f.mock.ExpectQuery("SELECT COUNT").
		WillReturnError(sql.ErrConnDone)

	resp, err := f.service.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestRefresh_RejectsConcurrentCycles(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	countriesHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	})

	f := newFixture(t, countriesHandler, serve(http.StatusOK, ratesPayload))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.service.Refresh(context.Background())
	}()

	<-started

	_, err := f.service.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))

	close(release)
	wg.Wait()

	// the in-flight cycle finished with its own upstream failure
	require.Error(t, firstErr)
	assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(firstErr))
}
