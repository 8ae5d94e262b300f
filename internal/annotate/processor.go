// Package annotate enriches records with descriptions from the
// content-understanding service.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meme-metadata/harvester/internal/gemini"
	"github.com/meme-metadata/harvester/internal/images"
	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/retry"
)

// Analyzer abstracts the content-understanding call so tests can fake it.
type Analyzer interface {
	Analyze(ctx context.Context, imageData []byte, mimeType string, width, height int, expectedIndices []int) (*gemini.Analysis, error)
}

// Processor runs one enrichment call per record and writes the overall and
// per-region descriptions into a copy of the record.
type Processor struct {
	Analyzer  Analyzer
	ImagesDir string
	Retry     retry.Policy
}

// Stage implements pipeline.Processor.
func (p *Processor) Stage() string { return "annotate" }

// Pending reports records that have no image description yet.
func (p *Processor) Pending(rec *meme.Record) bool {
	return !rec.Annotated()
}

// Process reads the record's saved image, calls the analyzer with bounded
// retries, and applies the result. The input record is the worker's private
// copy; on any error it is discarded and the stored record stays unchanged.
func (p *Processor) Process(ctx context.Context, key string, rec *meme.Record) (*meme.Record, error) {
	imagePath := filepath.Join(p.ImagesDir, rec.Filename)
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image for %s: %w", key, err)
	}

	expectedIndices := make([]int, len(rec.TextOptions))
	for i := range rec.TextOptions {
		expectedIndices[i] = i
	}

	var analysis *gemini.Analysis
	err = p.Retry.Do(ctx, "analyze "+key, func(ctx context.Context) error {
		var callErr error
		analysis, callErr = p.Analyzer.Analyze(ctx, imageData, images.MimeType(rec.Filename), rec.Width, rec.Height, expectedIndices)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	Apply(key, rec, analysis)
	return rec, nil
}

// Apply writes an analysis into rec. Region entries with out-of-range
// indices are dropped with a log, never treated as fatal.
func Apply(key string, rec *meme.Record, analysis *gemini.Analysis) {
	desc := analysis.ImageDescription
	rec.ImageDescription = &desc

	for _, td := range analysis.TextDescriptions {
		if td.Index < 0 || td.Index >= len(rec.TextOptions) {
			slog.Warn("Dropping region description with out-of-range index",
				"key", key, "index", td.Index, "regions", len(rec.TextOptions))
			continue
		}
		rec.TextOptions[td.Index].Description = td.Description
	}
}
