// Package summary renders the cached catalog snapshot image after a
// successful refresh. Everything here is best-effort: a failure is
// logged and counted, never surfaced to the caller.
package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Gobusters/ectologger"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	imageWidth  = 1000
	imageHeight = 600

	// ArtifactName is the fixed well-known file name of the cached
	// snapshot, overwritten on every successful refresh.
	ArtifactName = "summary.png"

	maxTextLength = 80
)

// Generator renders the catalog summary artifact.
type Generator struct {
	cacheDir string
	logger   ectologger.Logger
}

// NewGenerator creates a summary generator writing under cacheDir.
func NewGenerator(cacheDir string, logger ectologger.Logger) *Generator {
	return &Generator{
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Path returns the artifact's location on disk.
func (g *Generator) Path() string {
	return filepath.Join(g.cacheDir, ArtifactName)
}

// Generate renders the snapshot image and writes it atomically to the
// well-known path. The returned error is for logging only; callers must
// not fail a refresh on it.
func (g *Generator) Generate(ctx context.Context, summary models.CatalogSummary) error {
	ctx, span := tracing.StartSpan(ctx, "summary.Generator.Generate")
	defer span.End()

	if err := g.render(summary); err != nil {
		metrics.SummaryFailuresTotal.Inc()
		g.logger.WithContext(ctx).WithError(err).Error("summary artifact generation failed")
		return err
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"path":      g.Path(),
		"countries": summary.TotalCountries,
	}).Info("Wrote summary artifact")
	return nil
}

func (g *Generator) render(summary models.CatalogSummary) error {
	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.07, 0.07, 0.07)
	dc.DrawString("Countries Summary", 40, 50)

	dc.SetRGB(0.13, 0.13, 0.13)
	dc.DrawString("Total countries: "+sanitize(strconv.FormatInt(summary.TotalCountries, 10)), 40, 95)
	dc.DrawString("Last refreshed at: "+sanitize(summary.RefreshedAt.UTC().Format(time.RFC3339)), 40, 125)
	dc.DrawString("Top 5 countries by estimated GDP:", 40, 170)

	dc.SetRGB(0.2, 0.2, 0.2)
	y := 200.0
	for i, country := range summary.TopCountries {
		line := fmt.Sprintf("%d. %s - %s", i+1, sanitize(country.Name), formatGDP(country.EstimatedGDP))
		dc.DrawString(line, 60, y)
		y += 28
	}

	// write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(g.cacheDir, ArtifactName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}

	if err := dc.EncodePNG(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), g.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}

// sanitize strips control characters from interpolated text and caps
// its length before it reaches the drawing instructions.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	// truncate on rune boundaries so multibyte names stay valid UTF-8
	if runes := []rune(s); len(runes) > maxTextLength {
		s = string(runes[:maxTextLength])
	}
	return s
}

// formatGDP renders an estimate with thousands separators, or "N/A"
// when no estimate exists.
func formatGDP(v *float64) string {
	if v == nil {
		return "N/A"
	}

	s := strconv.FormatFloat(*v, 'f', 2, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	return sign + b.String() + "." + frac
}
