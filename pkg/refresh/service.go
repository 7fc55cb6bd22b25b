// Package refresh orchestrates a full catalog refresh cycle: fetch the
// upstream payloads, derive per-country fields, persist everything in a
// single transaction, then regenerate the summary artifact.
package refresh

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/gdp"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/summary"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const topCountriesLimit = 5

// Service runs refresh cycles. At most one cycle runs at a time; a
// request arriving while one is in flight is rejected with 409.
type Service struct {
	repo       *repositories.CountryRepository
	aggregator *sources.Aggregator
	calculator *gdp.Calculator
	generator  *summary.Generator
	producer   *kafka.Producer
	logger     ectologger.Logger

	mu sync.Mutex
}

// NewService creates a refresh service. producer may be nil when event
// emission is disabled.
func NewService(
	repo *repositories.CountryRepository,
	aggregator *sources.Aggregator,
	calculator *gdp.Calculator,
	generator *summary.Generator,
	producer *kafka.Producer,
	logger ectologger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		aggregator: aggregator,
		calculator: calculator,
		generator:  generator,
		producer:   producer,
		logger:     logger,
	}
}

// Refresh executes one full cycle. Persistence is all-or-nothing: any
// upstream or database failure leaves the previous catalog intact. The
// summary artifact and the refresh event are best-effort and never fail
// the cycle.
func (s *Service) Refresh(ctx context.Context) (*models.RefreshResponse, error) {
	if !s.mu.TryLock() {
		metrics.RefreshesTotal.WithLabelValues("rejected").Inc()
		return nil, httperror.NewHTTPError(http.StatusConflict, "Refresh already in progress")
	}
	defer s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "refresh.Service.Refresh")
	defer span.End()

	start := time.Now()

	records, rates, err := s.aggregator.Fetch(ctx)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}

	// one timestamp covers every row written by this cycle
	refreshedAt := time.Now().UTC()

	rows := s.buildRows(ctx, records, rates)

	result, err := s.repo.UpsertAll(ctx, rows, refreshedAt)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	metrics.RefreshesTotal.WithLabelValues("success").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	metrics.CountriesUpserted.WithLabelValues("insert").Add(float64(result.Inserted))
	metrics.CountriesUpserted.WithLabelValues("update").Add(float64(result.Updated))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"duration": time.Since(start).String(),
	}).Info("Catalog refresh complete")

	s.regenerateSummary(ctx, refreshedAt)
	s.publishRefreshEvent(ctx, result, refreshedAt)

	return &models.RefreshResponse{
		Message:         "Countries refreshed",
		LastRefreshedAt: refreshedAt,
	}, nil
}

// buildRows derives the persisted row for each usable registry record.
// Records without a usable name are skipped, not failed.
func (s *Service) buildRows(ctx context.Context, records []sources.CountryRecord, rates map[string]float64) []models.CountryUpsert {
	rows := make([]models.CountryUpsert, 0, len(records))
	skipped := 0

	for _, record := range records {
		name := strings.TrimSpace(record.Name)
		if name == "" {
			skipped++
			continue
		}

		derived := s.calculator.Derive(int64(record.Population), record.Currencies, rates)

		rows = append(rows, models.CountryUpsert{
			Name:         name,
			Capital:      optional(record.Capital),
			Region:       optional(record.Region),
			Population:   int64(record.Population),
			FlagURL:      optional(record.Flag),
			CurrencyCode: derived.CurrencyCode,
			ExchangeRate: derived.ExchangeRate,
			EstimatedGDP: derived.EstimatedGDP,
		})
	}

	if skipped > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"skipped": skipped,
		}).Warn("Skipped registry records without a name")
	}

	return rows
}

// regenerateSummary re-reads the committed catalog and rewrites the
// artifact. Failures are logged by the generator and swallowed here.
func (s *Service) regenerateSummary(ctx context.Context, refreshedAt time.Time) {
	status, err := s.repo.Status(ctx)
	if err != nil {
		metrics.SummaryFailuresTotal.Inc()
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read catalog status for summary")
		return
	}

	top, err := s.repo.TopByGDP(ctx, topCountriesLimit)
	if err != nil {
		metrics.SummaryFailuresTotal.Inc()
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read top countries for summary")
		return
	}

	_ = s.generator.Generate(ctx, models.CatalogSummary{
		TotalCountries: status.TotalCountries,
		RefreshedAt:    refreshedAt,
		TopCountries:   top,
	})
}

func (s *Service) publishRefreshEvent(ctx context.Context, result repositories.UpsertResult, refreshedAt time.Time) {
	if s.producer == nil {
		return
	}

	event := &kafka.RefreshEvent{
		TotalCountries: int64(result.Inserted + result.Updated),
		Inserted:       result.Inserted,
		Updated:        result.Updated,
		RefreshedAt:    refreshedAt,
	}

	if err := s.producer.PublishRefreshEvent(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish refresh event")
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
