// Package scrape discovers meme templates on the listing site and creates
// their initial records.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/meme-metadata/harvester/internal/geometry"
	"github.com/meme-metadata/harvester/internal/images"
	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/render"
	"github.com/meme-metadata/harvester/internal/store"
)

// DefaultStartURL is the template listing ordered by all-time popularity.
const DefaultStartURL = "https://imgflip.com/memetemplates?sort=top-all-time"

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ImageFetcher is the subset of the image fetcher the scraper needs.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, int, int, error)
}

// Scraper walks the listing pages, extracts geometry from each generator
// page, downloads the original image, and appends new records to the
// collection. Existing keys are skipped, so repeated runs are incremental.
type Scraper struct {
	Renderer      render.Renderer
	Fetcher       ImageFetcher
	Store         *store.Store
	StartURL      string
	ImagesDir     string
	RenderTimeout time.Duration
}

// Run scrapes up to maxPages listing pages and persists the collection
// after every new record.
func (s *Scraper) Run(ctx context.Context, maxPages int) error {
	if err := os.MkdirAll(s.ImagesDir, 0755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	records, err := s.Store.Load()
	if err != nil {
		return err
	}
	if len(records) > 0 {
		slog.Info("Loaded existing records", "count", len(records))
	}

	links, err := s.CollectGeneratorLinks(maxPages)
	if err != nil {
		return err
	}
	slog.Info("Collected generator links", "count", len(links))

	for _, genURL := range links {
		key := render.TemplateKey(genURL)
		if key == "" {
			continue
		}
		if _, exists := records[key]; exists {
			continue
		}

		rec, err := s.scrapeTemplate(ctx, genURL, key)
		if err != nil {
			slog.Warn("Skipping template page", "url", genURL, "error", err)
			continue
		}

		records[key] = rec
		if err := s.Store.Save(records); err != nil {
			return err
		}
		slog.Info("Scraped and saved template", "key", key, "url", genURL)
	}

	return nil
}

// CollectGeneratorLinks walks the paginated listing and returns the
// deduplicated generator URLs. Pagination stops at the first page yielding
// no new links, or after maxPages when maxPages > 0.
func (s *Scraper) CollectGeneratorLinks(maxPages int) ([]string, error) {
	startURL := s.StartURL
	if startURL == "" {
		startURL = DefaultStartURL
	}

	var links []string
	seen := make(map[string]bool)

	for pageIndex := 1; ; pageIndex++ {
		pageURL := listingPageURL(startURL, pageIndex)
		doc, err := s.Renderer.Render(pageURL, nil, s.RenderTimeout)
		if err != nil {
			if pageIndex == 1 {
				return nil, fmt.Errorf("failed to load listing page: %w", err)
			}
			slog.Warn("Stopping pagination on fetch error", "page", pageIndex, "error", err)
			break
		}

		pageLinks := extractCaptionLinks(doc, pageURL, seen)
		slog.Debug("Scanned listing page", "page", pageIndex, "new_links", len(pageLinks))
		if len(pageLinks) == 0 {
			break
		}

		links = append(links, pageLinks...)
		if maxPages > 0 && pageIndex >= maxPages {
			break
		}
	}

	return links, nil
}

func listingPageURL(startURL string, page int) string {
	if page == 1 {
		return startURL
	}
	sep := "?"
	if strings.Contains(startURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", startURL, sep, page)
}

// extractCaptionLinks pulls "Add Caption" anchors pointing at generator
// pages out of one listing page.
func extractCaptionLinks(doc *goquery.Document, pageURL string, seen map[string]bool) []string {
	var links []string
	doc.Find("a.mt-caption").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := render.NormalizeURL(pageURL, href)
		if abs == "" || !strings.Contains(abs, "/memegenerator/") || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	return links
}

func (s *Scraper) scrapeTemplate(ctx context.Context, genURL, key string) (*meme.Record, error) {
	doc, err := s.Renderer.Render(genURL, render.WaitSelectors, s.RenderTimeout)
	if err != nil {
		return nil, err
	}
	page, err := render.ExtractPageData(doc, genURL)
	if err != nil {
		return nil, err
	}

	data, width, height, err := s.Fetcher.Fetch(ctx, page.ImageURL)
	if err != nil {
		return nil, err
	}

	filename := imageFilename(key, page.ImageURL)
	if err := s.saveImage(filename, data); err != nil {
		return nil, err
	}

	// Canvas-based scaling at creation time; the degraded fallback keeps the
	// raw pixel values when the canvas dimensions are unknown.
	scaleX := ratioOrZero(width, page.CanvasWidth)
	scaleY := ratioOrZero(height, page.CanvasHeight)
	textOptions := make([]meme.TextRegion, len(page.Boxes))
	for i, box := range page.Boxes {
		textOptions[i] = meme.TextRegion{
			Position: geometry.ScaleBox(box, scaleX, scaleY),
		}
	}

	return &meme.Record{
		Name:             key,
		URL:              genURL,
		ImageURL:         page.ImageURL,
		Filename:         filename,
		Width:            width,
		Height:           height,
		ImageNameFromSrc: imageStem(page.ImageURL),
		TextOptions:      textOptions,
	}, nil
}

func ratioOrZero(original, canvas int) float64 {
	if canvas <= 0 {
		return 0
	}
	return float64(original) / float64(canvas)
}

func (s *Scraper) saveImage(filename string, data []byte) error {
	path := filepath.Join(s.ImagesDir, filename)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		slog.Debug("Image already exists, skipping save", "path", path)
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}

// SafeFilename strips characters that are not filesystem friendly.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	return unsafeFilenameRe.ReplaceAllString(name, "")
}

func imageFilename(key, imageURL string) string {
	base := SafeFilename(key)
	if base == "" {
		base = "image"
	}
	ext := urlPathExt(imageURL)
	if ext == "" {
		ext = ".jpg"
	}
	return base + ext
}

func urlPathExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return filepath.Ext(u.Path)
}

func imageStem(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ""
	}
	base := filepath.Base(u.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var _ ImageFetcher = (*images.Fetcher)(nil)
