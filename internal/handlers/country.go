package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/refresh"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/summary"
)

// CountryHandler handles the country catalog endpoints
type CountryHandler struct {
	repo      *repositories.CountryRepository
	refresher *refresh.Service
	generator *summary.Generator
	validate  *validator.Validate
	logger    ectologger.Logger
}

// NewCountryHandler creates a new country handler
func NewCountryHandler(
	repo *repositories.CountryRepository,
	refresher *refresh.Service,
	generator *summary.Generator,
	logger ectologger.Logger,
) *CountryHandler {
	return &CountryHandler{
		repo:      repo,
		refresher: refresher,
		generator: generator,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RegisterRoutes registers country routes
func (h *CountryHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/countries/refresh", h.Refresh)
	e.GET("/countries", h.List)
	e.GET("/countries/image", h.Image)
	e.GET("/countries/:name", h.Get)
	e.DELETE("/countries/:name", h.Delete)
	e.GET("/status", h.Status)
}

// Refresh runs a full refresh cycle against the upstream sources
func (h *CountryHandler) Refresh(c echo.Context) error {
	resp, err := h.refresher.Refresh(c.Request().Context())
	if err != nil {
		return err
	}

	return SuccessResponse(c, resp)
}

// List returns the catalog, optionally filtered and sorted
func (h *CountryHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var q models.ListCountriesQuery
	if err := c.Bind(&q); err != nil {
		return BadRequest("invalid query parameters")
	}

	if err := h.validate.Struct(&q); err != nil {
		vErr := httperror.NewHTTPError(http.StatusBadRequest, "validation failed")
		vErr.Meta = map[string]any{
			"details": "sort must be one of " + strings.Join(repositories.SortKeys(), ", "),
		}
		return vErr
	}

	countries, err := h.repo.List(ctx, q)
	if err != nil {
		return err
	}

	return SuccessResponse(c, countries)
}

// Get returns a single country by name, matched case-insensitively
func (h *CountryHandler) Get(c echo.Context) error {
	name := c.Param("name")
	if strings.TrimSpace(name) == "" {
		return BadRequest("missing country name")
	}

	country, err := h.repo.GetByName(c.Request().Context(), name)
	if err != nil {
		return err
	}

	return SuccessResponse(c, country)
}

// Delete removes a single country by name, matched case-insensitively
func (h *CountryHandler) Delete(c echo.Context) error {
	name := c.Param("name")
	if strings.TrimSpace(name) == "" {
		return BadRequest("missing country name")
	}

	if err := h.repo.DeleteByName(c.Request().Context(), name); err != nil {
		return err
	}

	return SuccessResponse(c, models.MessageResponse{Message: "Country deleted"})
}

// Status reports the catalog row count and the last refresh timestamp
func (h *CountryHandler) Status(c echo.Context) error {
	status, err := h.repo.Status(c.Request().Context())
	if err != nil {
		return err
	}

	return SuccessResponse(c, status)
}

// Image serves the cached summary artifact written by the last refresh
func (h *CountryHandler) Image(c echo.Context) error {
	path := h.generator.Path()
	if _, err := os.Stat(path); err != nil {
		return NotFound("Summary image not found")
	}

	return c.File(path)
}
