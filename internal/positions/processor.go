// Package positions re-derives caption geometry in original-image pixel
// space from a freshly rendered generator page.
package positions

import (
	"context"
	"fmt"
	"time"

	"github.com/meme-metadata/harvester/internal/geometry"
	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/pipeline"
	"github.com/meme-metadata/harvester/internal/render"
	"github.com/meme-metadata/harvester/internal/retry"
)

// ImageFetcher is the subset of the image fetcher the processor needs.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, int, int, error)
}

// Processor rewrites each text region's updated_position using the ratio
// between the original image width and the rendered preview width.
type Processor struct {
	Renderer      render.Renderer
	Fetcher       ImageFetcher
	RenderTimeout time.Duration
	Retry         retry.Policy
}

var _ pipeline.Processor = (*Processor)(nil)

// Stage implements pipeline.Processor.
func (p *Processor) Stage() string { return "positions" }

// Pending reports records whose positions have not been updated yet.
func (p *Processor) Pending(rec *meme.Record) bool {
	return !rec.HasUpdatedPositions
}

// Process renders the record's source page, measures the preview boxes,
// fetches the original image for its authoritative width, and rewrites every
// region's updated position. The render and image fetch are retried with
// backoff. The completion marker is set only after all regions are rewritten;
// any failure leaves the stored record untouched because rec is the worker's
// private copy.
func (p *Processor) Process(ctx context.Context, key string, rec *meme.Record) (*meme.Record, error) {
	var page *render.PageData
	err := p.Retry.Do(ctx, "render "+key, func(ctx context.Context) error {
		doc, renderErr := p.Renderer.Render(rec.URL, render.WaitSelectors, p.RenderTimeout)
		if renderErr != nil {
			return fmt.Errorf("failed to render %s: %w", rec.URL, renderErr)
		}
		page, renderErr = render.ExtractPageData(doc, rec.URL)
		return renderErr
	})
	if err != nil {
		return nil, err
	}

	var originalWidth int
	err = p.Retry.Do(ctx, "fetch image "+key, func(ctx context.Context) error {
		var fetchErr error
		_, originalWidth, _, fetchErr = p.Fetcher.Fetch(ctx, page.ImageURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	ratio, err := geometry.UniformRatio(originalWidth, page.PreviewWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: preview width %.1f for %s", err, page.PreviewWidth, key)
	}

	scaled, err := geometry.ScaleBoxesUniform(page.Boxes, ratio)
	if err != nil {
		return nil, err
	}

	for i := range rec.TextOptions {
		if i >= len(scaled) {
			break
		}
		box := scaled[i]
		rec.TextOptions[i].UpdatedPosition = &box
	}
	rec.HasUpdatedPositions = true
	return rec, nil
}
