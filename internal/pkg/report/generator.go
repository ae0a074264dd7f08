// Package report builds the daily and all-time opening line reports.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/openingline/internal/pkg/models"
	"github.com/Vodeneev/openingline/internal/pkg/storage"
)

// Generator renders a report and stores it next to the data it summarizes.
type Generator struct {
	store storage.BlobStore
	keys  storage.Keys
	pdf   PDFRenderer // nil = HTML only
}

func NewGenerator(store storage.BlobStore, keys storage.Keys, pdf PDFRenderer) *Generator {
	return &Generator{store: store, keys: keys, pdf: pdf}
}

// Generate summarizes pairs and writes the HTML (and PDF) report.
// It returns the summary and the keys written.
func (g *Generator) Generate(ctx context.Context, pairs []models.PricePair, date string, aggregate bool) (Summary, []string, error) {
	s := Summarize(pairs, date, aggregate)

	html, err := RenderHTML(s)
	if err != nil {
		return s, nil, err
	}

	htmlKey := g.keys.Report(date, aggregate, "html")
	if err := g.store.Put(ctx, htmlKey, html); err != nil {
		return s, nil, fmt.Errorf("failed to store report %s: %w", htmlKey, err)
	}
	written := []string{htmlKey}

	if g.pdf != nil {
		pdf, err := g.pdf.RenderPDF(ctx, html)
		if err != nil {
			// the HTML report is already stored; a missing browser should not fail the run
			slog.Warn("PDF rendering failed, keeping HTML report", "date", date, "aggregate", aggregate, "error", err)
		} else {
			pdfKey := g.keys.Report(date, aggregate, "pdf")
			if err := g.store.Put(ctx, pdfKey, pdf); err != nil {
				return s, written, fmt.Errorf("failed to store report %s: %w", pdfKey, err)
			}
			written = append(written, pdfKey)
		}
	}

	slog.Info("Report generated", "date", date, "aggregate", aggregate, "lines", s.Count, "keys", written)
	return s, written, nil
}
